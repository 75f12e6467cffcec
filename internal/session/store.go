// Package session owns the delegated-login session: the tokens and
// profile returned by the login provider, held in memory and persisted
// so a restart does not log the user out.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/PriyanKishoreMS/transmyaction-dash/internal/log"
)

// FallbackAvatar is used when the login provider returns no avatar URL.
const FallbackAvatar = "/fallbacksnoovatar.png"

// Credentials is the full set of values captured at login.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Username     string
	Email        string
	Avatar       string
}

// Storage persists credentials across restarts.
type Storage interface {
	Load(ctx context.Context) (Credentials, bool, error)
	Save(ctx context.Context, creds Credentials) error
	UpdateAccessToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Store is the single owner of the current session. All reads and
// writes go through it; nothing else holds token state.
type Store struct {
	mu      sync.RWMutex
	creds   Credentials
	present bool

	storage Storage
	logger  *log.Logger
}

func NewStore(storage Storage, logger *log.Logger) *Store {
	return &Store{
		storage: storage,
		logger:  logger.WithComponent(log.ComponentSession),
	}
}

// Reload hydrates the in-memory session from storage. Called once at
// startup; a missing persisted session leaves the store logged out.
func (s *Store) Reload(ctx context.Context) error {
	creds, found, err := s.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload session: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.present = found
	s.mu.Unlock()

	if found {
		s.logger.InfoContext(ctx, "Session restored from storage",
			log.FieldUserEmail, creds.Email,
			log.FieldOperation, log.OpReload)
	}
	return nil
}

// Login stores a freshly issued session. Both tokens are required; the
// avatar falls back to a placeholder when the provider omits it.
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return fmt.Errorf("login: access and refresh tokens are required")
	}
	if creds.Avatar == "" {
		creds.Avatar = FallbackAvatar
	}

	if err := s.storage.Save(ctx, creds); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.present = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Session established",
		log.FieldUserEmail, creds.Email,
		log.FieldOperation, log.OpLogin)
	return nil
}

// Logout drops the session from memory and storage.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	s.mu.Lock()
	email := s.creds.Email
	s.creds = Credentials{}
	s.present = false
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Session cleared",
		log.FieldUserEmail, email,
		log.FieldOperation, log.OpLogout)
	return nil
}

// UpdateAccessToken commits a refreshed access token. The refresh
// token and profile are left untouched.
func (s *Store) UpdateAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	if !s.present {
		s.mu.Unlock()
		return fmt.Errorf("update access token: not logged in")
	}
	s.creds.AccessToken = token
	s.mu.Unlock()

	if err := s.storage.UpdateAccessToken(ctx, token); err != nil {
		return fmt.Errorf("persist refreshed token: %w", err)
	}

	s.logger.InfoContext(ctx, "Access token refreshed",
		log.FieldOperation, log.OpRefresh)
	return nil
}

// Ping verifies the backing storage is still reachable. Readiness
// probes call this so a broken session database is surfaced instead of
// failing on the first login.
func (s *Store) Ping(ctx context.Context) error {
	if _, _, err := s.storage.Load(ctx); err != nil {
		return fmt.Errorf("session storage: %w", err)
	}
	return nil
}

// Current returns a snapshot of the session. The boolean is false when
// no one is logged in.
func (s *Store) Current() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, s.present
}

// AccessToken returns the current access token, or empty when logged out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken
}

// RefreshToken returns the current refresh token, or empty when logged out.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.RefreshToken
}

// Email returns the logged-in user's email, or empty when logged out.
func (s *Store) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Email
}
