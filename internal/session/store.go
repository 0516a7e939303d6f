package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

// Snapshot is the persisted form of a session.
type Snapshot struct {
	User        *models.User
	Cookies     []*http.Cookie
	AccessToken string
	TokenType   string
	SavedAt     time.Time
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

type storedSession struct {
	User        *models.User   `json:"user"`
	Cookies     []storedCookie `json:"cookies,omitempty"`
	AccessToken string         `json:"access_token,omitempty"`
	TokenType   string         `json:"token_type,omitempty"`
	SavedAt     time.Time      `json:"saved_at"`
}

// Store reads and writes a [Snapshot] at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store at path; a leading "~" is expanded.
func NewStore(path string) *Store {
	return &Store{path: shared.ExpandHome(path)}
}

// Path returns the expanded file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes snap atomically with owner-only permissions.
func (s *Store) Save(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	stored := storedSession{
		User:        snap.User,
		AccessToken: snap.AccessToken,
		TokenType:   snap.TokenType,
		SavedAt:     snap.SavedAt,
	}
	if stored.SavedAt.IsZero() {
		stored.SavedAt = time.Now()
	}
	for _, c := range snap.Cookies {
		stored.Cookies = append(stored.Cookies, storedCookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}

	data, err := shared.MarshalJSON(stored, true)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Load reads the persisted session. Returns [shared.ErrNotAuthenticated] when none exists.
//
// Cookies past their expiry are dropped.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: corrupt session file %s: %v", shared.ErrInvalidInput, s.path, err)
	}

	snap := &Snapshot{
		User:        stored.User,
		AccessToken: stored.AccessToken,
		TokenType:   stored.TokenType,
		SavedAt:     stored.SavedAt,
	}
	now := time.Now()
	for _, c := range stored.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		snap.Cookies = append(snap.Cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/", Expires: c.Expires})
	}
	return snap, nil
}

// Clear removes the persisted session. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
