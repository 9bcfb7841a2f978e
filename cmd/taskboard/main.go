package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/app"
	"github.com/nhle/taskboard/internal/cache"
	"github.com/nhle/taskboard/internal/inbox"
	"github.com/nhle/taskboard/internal/logging"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/query"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/session"
	appsync "github.com/nhle/taskboard/internal/sync"
)

var Version = "dev"

func main() {
	var (
		configPath string
		apiURL     string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:     "taskboard",
		Short:   "Taskboard - shared task boards in your terminal",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, apiURL, logLevel)
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (default ~/.config/taskboard/config.yaml)")
	rootCmd.Flags().StringVar(&apiURL, "api-url", "", "API server base URL (overrides config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires the components together and starts the TUI.
func run(configPath, apiURL, logLevel string) error {
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("no API server configured; set api.base_url in %s or pass --api-url", configPath)
	}

	log, closeLog, err := logging.New(logging.DefaultLogPath(), logLevel)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closeLog()
	log.Info("starting", zap.String("version", Version), zap.String("api", cfg.API.BaseURL))

	client, err := api.NewClient(cfg.API.BaseURL, log)
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}

	store := cache.New(time.Duration(cfg.Cache.StaleAfterSec)*time.Second, log)
	queries := query.New(client, store)
	sess := session.New(client, log)

	socketURL := cfg.API.SocketURL
	if socketURL == "" {
		socketURL = realtime.SocketURL(cfg.API.BaseURL)
	}
	bridge := realtime.New(realtime.Config{
		URL:            socketURL,
		Jar:            client.CookieJar(),
		MaxReconnects:  cfg.Realtime.MaxReconnects,
		ReconnectDelay: time.Duration(cfg.Realtime.ReconnectDelaySec) * time.Second,
		ConnectTimeout: time.Duration(cfg.Realtime.ConnectTimeoutSec) * time.Second,
	}, store, log)

	poller := appsync.New(queries,
		time.Duration(cfg.Notifications.PollIntervalSec)*time.Second, log)

	root := app.New(app.Deps{
		Config:  cfg,
		API:     client,
		Cache:   store,
		Queries: queries,
		Session: sess,
		Bridge:  bridge,
		Poller:  poller,
		Inbox:   inboxClient(cfg),
		Log:     log,
	})

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error("program exited with error", zap.Error(err))
		return err
	}
	return nil
}

// inboxClient builds the optional IMAP reader used to pull OTP codes
// out of the verification email. The password comes from the
// environment so it never lands in the config file.
func inboxClient(cfg *model.AppConfig) *inbox.Client {
	if cfg.Inbox.Host == "" || cfg.Inbox.Username == "" {
		return nil
	}
	password := os.Getenv("TASKBOARD_INBOX_PASSWORD")
	if password == "" {
		return nil
	}
	return inbox.NewClient(
		cfg.Inbox.Host,
		cfg.Inbox.Port,
		cfg.Inbox.Username,
		password,
		cfg.Inbox.TLS,
	)
}

// configCmd writes a default config file for first-run setup.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := model.DefaultConfigPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			cfg, err := model.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := model.SaveConfig(path, cfg); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}
