package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/grievance-portal/internal/api/dto"
	"github.com/spec-kit/grievance-portal/internal/domain"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// SessionKey is the single key the session record is stored under.
const SessionKey = "gms_current_user"

// KV is the persistence the session store needs. fiber.Storage
// implementations satisfy it.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
}

// Session is the signed in identity with its bearer token.
type Session struct {
	Identity  domain.Identity
	Token     string
	ExpiresAt time.Time
}

type sessionRecord struct {
	User      dto.IdentityResponse `json:"user"`
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// SessionStore holds at most one signed in identity.
type SessionStore struct {
	mu  sync.Mutex
	kv  KV
	api *API
}

// NewSessionStore binds the store to kv and makes it the credential
// source of api.
func NewSessionStore(kv KV, api *API) *SessionStore {
	store := &SessionStore{kv: kv, api: api}
	api.Authorize(store)
	return store
}

// SignIn authenticates against the API and replaces the current session.
// A failed attempt leaves the previous session untouched.
func (s *SessionStore) SignIn(ctx context.Context, email, password, role string) (domain.Identity, error) {
	resp, err := s.api.Login(ctx, email, password, role)
	if err != nil {
		return domain.Identity{}, err
	}
	return s.replace(resp)
}

// Register creates an account and signs it in.
func (s *SessionStore) Register(ctx context.Context, req dto.RegisterRequest) (domain.Identity, error) {
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return domain.Identity{}, err
	}
	return s.replace(resp)
}

func (s *SessionStore) replace(resp dto.AuthResponse) (domain.Identity, error) {
	identity, err := resp.User.ToDomain()
	if err != nil {
		return domain.Identity{}, apperrors.NewInternalError(err)
	}
	raw, err := json.Marshal(sessionRecord{
		User:      dto.NewIdentityResponse(identity),
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
	})
	if err != nil {
		return domain.Identity{}, apperrors.NewInternalError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(SessionKey, raw, 0); err != nil {
		return domain.Identity{}, apperrors.NewInternalError(fmt.Errorf("persist session: %w", err))
	}
	return identity, nil
}

// SignOut clears the session. Signing out twice is not an error.
func (s *SessionStore) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(SessionKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the persisted session. An unreadable record is removed
// and reported as signed out.
func (s *SessionStore) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(SessionKey)
	if err != nil || len(raw) == 0 {
		return Session{}, false
	}
	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		_ = s.kv.Delete(SessionKey)
		return Session{}, false
	}
	identity, err := record.User.ToDomain()
	if err != nil || identity.ID == "" || record.Token == "" {
		_ = s.kv.Delete(SessionKey)
		return Session{}, false
	}
	return Session{Identity: identity, Token: record.Token, ExpiresAt: record.ExpiresAt}, true
}

// Identity returns the signed in identity.
func (s *SessionStore) Identity() (domain.Identity, bool) {
	session, ok := s.Current()
	return session.Identity, ok
}

// BearerToken implements Credentials.
func (s *SessionStore) BearerToken() (string, bool) {
	session, ok := s.Current()
	if !ok {
		return "", false
	}
	return session.Token, true
}

// Revoke implements Credentials; the API calls it on a 401.
func (s *SessionStore) Revoke() error {
	return s.SignOut()
}
