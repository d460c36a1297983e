package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
)

// sessionCookie is the cookie Instagram sets for an authenticated session.
const sessionCookie = "sessionid"

// CookieStore persists one account's session cookies so later runs can skip
// the login form.
type CookieStore struct {
	path string
}

// StoredCookies is the on-disk form of a CookieStore.
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at path.
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// CookiePath returns the cookie file for account under dir.
func CookiePath(dir, account string) string {
	return filepath.Join(dir, account+"_cookies.json")
}

// Save writes cookies to disk.
func (cs *CookieStore) Save(cookies []*network.Cookie, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0o700); err != nil {
		return fmt.Errorf("creating cookie directory: %w", err)
	}

	stored := StoredCookies{Cookies: cookies, CapturedAt: now}
	for _, c := range cookies {
		if c.Name == sessionCookie && c.Expires > 0 {
			stored.ExpiresAt = time.Unix(int64(c.Expires), 0)
		}
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cs.path, data, 0o600)
}

// Load reads the stored cookies.
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}
	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", cs.path, err)
	}
	return &stored, nil
}

// Valid returns the stored cookies when they contain an unexpired session.
func (cs *CookieStore) Valid(now time.Time) ([]*network.Cookie, bool) {
	stored, err := cs.Load()
	if err != nil {
		return nil, false
	}
	if !stored.ExpiresAt.IsZero() && now.After(stored.ExpiresAt) {
		return nil, false
	}
	for _, c := range stored.Cookies {
		if c.Name == sessionCookie && c.Value != "" {
			return stored.Cookies, true
		}
	}
	return nil, false
}

// Clear removes the stored cookies. A missing file is not an error.
func (cs *CookieStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
