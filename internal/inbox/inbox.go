// Package inbox pulls one-time verification codes out of the user's
// email, so the OTP form can be filled without leaving the terminal.
// It is optional: without IMAP settings the feature is simply off.
package inbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
)

// otpPattern matches the 6-digit verification codes the task manager
// sends.
var otpPattern = regexp.MustCompile(`\b(\d{6})\b`)

// Client wraps go-imap v2 for reading recent verification emails.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewClient creates an IMAP client configuration.
func NewClient(host, port, username, password string, tls bool) *Client {
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// connect establishes a connection to the IMAP server and
// authenticates. The caller is responsible for Logout.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", c.username, err)
	}
	return client, nil
}

// LatestOTP searches INBOX for the most recent message received since
// the given time that contains a 6-digit code, and returns the code.
func (c *Client) LatestOTP(ctx context.Context, since time.Time) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return "", fmt.Errorf("selecting INBOX: %w", err)
	}

	criteria := &imap.SearchCriteria{Since: since}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return "", fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return "", fmt.Errorf("no recent messages in INBOX")
	}

	// Scan newest first; verification emails are almost always the
	// latest arrival.
	const scanLimit = 10
	if len(uids) > scanLimit {
		uids = uids[len(uids)-scanLimit:]
	}
	for i := len(uids) - 1; i >= 0; i-- {
		code, err := c.otpFromMessage(client, uids[i])
		if err != nil {
			continue
		}
		if code != "" {
			return code, nil
		}
	}

	return "", fmt.Errorf("no verification code found in recent messages")
}

// otpFromMessage fetches one message body and extracts a code from
// its subject or text.
func (c *Client) otpFromMessage(client *imapclient.Client, uid imap.UID) (string, error) {
	uidSet := imap.UIDSetNum(uid)
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return "", fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return "", fmt.Errorf("collecting message data: %w", err)
	}

	if buf.Envelope != nil {
		if code := otpPattern.FindString(buf.Envelope.Subject); code != "" {
			return code, nil
		}
	}

	rawBody := buf.FindBodySection(bodySection)
	if rawBody == nil {
		return "", nil
	}
	return otpFromBody(rawBody), nil
}

// otpFromBody parses a raw RFC 2822 body with go-message and scans
// its text parts for a code.
func otpFromBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// If parsing fails, scan the raw bytes as plain text.
		return otpPattern.FindString(string(raw))
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if !strings.HasPrefix(contentType, "text/") {
			continue
		}
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		if code := otpPattern.FindString(string(body)); code != "" {
			return code
		}
	}
	return ""
}
