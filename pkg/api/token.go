package api

import (
	"fmt"
	"os"
	"strings"
)

// TokenStore persists the bearer token in a file between runs.
type TokenStore struct {
	path string
}

// NewTokenStore creates a TokenStore at the given path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load returns the stored token, or "" when none is stored.
func (t *TokenStore) Load() string {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Save writes the token with owner-only permissions.
func (t *TokenStore) Save(token string) error {
	if err := os.WriteFile(t.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("save token %s: %w", t.path, err)
	}
	return nil
}

// Clear removes the stored token.
func (t *TokenStore) Clear() error {
	err := os.Remove(t.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear token %s: %w", t.path, err)
	}
	return nil
}
