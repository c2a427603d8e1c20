package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the identity the SSO callback appends to the redirect.
type Session struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

// SessionFromRedirect extracts the session from the URL the browser
// landed on after /sso/callback.
func SessionFromRedirect(rawURL string) (Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Session{}, fmt.Errorf("parse redirect url: %w", err)
	}
	q := u.Query()
	s := Session{UID: q.Get("uid"), Token: q.Get("token")}
	if s.UID == "" || s.Token == "" {
		return Session{}, errors.New("redirect url carries no uid and token")
	}
	return s, nil
}

// FileSessionStore keeps one session as a JSON file.
type FileSessionStore struct {
	path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// DefaultSessionPath is <user config dir>/livegrid/session.json.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "livegrid", "session.json"), nil
}

func (s *FileSessionStore) Path() string {
	return s.path
}

func (s *FileSessionStore) Save(session Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Load returns nil without error when no session is stored.
func (s *FileSessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return &session, nil
}

func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Authenticated reports whether the stored session is still usable at now.
// The token's signature is not checked; only its exp claim is read. An
// expired or unreadable session is removed.
func (s *FileSessionStore) Authenticated(now time.Time) (*Session, bool, error) {
	session, err := s.Load()
	if err != nil {
		return nil, false, s.Clear()
	}
	if session == nil || session.Token == "" {
		return nil, false, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(session.Token, claims); err != nil {
		return nil, false, s.Clear()
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, false, s.Clear()
	}
	if exp != nil && exp.Time.Before(now) {
		return nil, false, s.Clear()
	}
	return session, true, nil
}
