// Package credential persists the session cookie in the system
// keyring so the cookie-backed session survives restarts.
package credential

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/99designs/keyring"
)

const serviceName = "taskboard"

// sessionKey is the keyring entry holding the serialized cookies.
const sessionKey = "session-cookies"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/taskboard/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("taskboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// storedCookie is the serializable subset of http.Cookie worth
// keeping between runs.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

// SaveSessionCookies stores the session cookies in the keyring.
func SaveSessionCookies(cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{
			Name:  c.Name,
			Value: c.Value,
			Path:  c.Path,
		})
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding session cookies: %w", err)
	}

	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: sessionKey, Data: data}); err != nil {
		return fmt.Errorf("storing session cookies: %w", err)
	}
	return nil
}

// LoadSessionCookies retrieves previously stored session cookies.
// A missing entry returns an empty slice, not an error.
func LoadSessionCookies() ([]*http.Cookie, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(sessionKey)
	if err != nil {
		if err == keyring.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session cookies: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(item.Data, &stored); err != nil {
		return nil, fmt.Errorf("decoding session cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{
			Name:  c.Name,
			Value: c.Value,
			Path:  c.Path,
		})
	}
	return cookies, nil
}

// ClearSessionCookies removes the stored session. Missing entries are
// not an error.
func ClearSessionCookies() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Remove(sessionKey); err != nil && err != keyring.ErrKeyNotFound {
		return fmt.Errorf("removing session cookies: %w", err)
	}
	return nil
}
