package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
)

const pendingLoginTTL = 10 * time.Minute

type SessionStore interface {
	Save(ctx context.Context, session SessionRecord, ttl time.Duration) error
	Get(ctx context.Context, sid string) (SessionRecord, error)
	Delete(ctx context.Context, sid string) error
}

type Service struct {
	tokens     *TokenManager
	sessions   SessionStore
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(tokens *TokenManager, sessions SessionStore, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 8 * time.Hour
	}

	return &Service{
		tokens:     tokens,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Status reports the login status of a browser session.
func (s *Service) Status(ctx context.Context, sid string) (enums.LoginStatus, error) {
	record, err := s.record(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return enums.LoginIdle, nil
		}
		return enums.LoginIdle, err
	}
	if record.Status == enums.LoginSuccess && !record.Authenticated(s.now()) {
		return enums.LoginIdle, nil
	}
	return record.Status, nil
}

// Identity returns the authenticated identity of a session.
func (s *Service) Identity(ctx context.Context, sid string) (Identity, bool, error) {
	record, err := s.record(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	if !record.Authenticated(s.now()) {
		return Identity{}, false, nil
	}
	return Identity{SID: sid, Principal: record.Principal, Token: record.Token}, true, nil
}

// BeginLogin moves the session into the logging-in state before the identity provider
// round trip and returns the state value the callback must echo back. It fails with
// ErrAlreadyAuthenticated when the session holds an identity.
func (s *Service) BeginLogin(ctx context.Context, sid string) (string, error) {
	if strings.TrimSpace(sid) == "" {
		return "", ErrInvalidInput
	}
	if err := s.ensureNotAuthenticated(ctx, sid); err != nil {
		return "", err
	}

	state := NewLoginState()
	if err := s.sessions.Save(ctx, SessionRecord{
		SID:       sid,
		State:     state,
		Status:    enums.LoginInProgress,
		ExpiresAt: s.now().Add(pendingLoginTTL),
	}, pendingLoginTTL); err != nil {
		return "", err
	}
	return state, nil
}

// CompleteLogin verifies the identity token returned by the provider and binds it to the session.
// The session must have a pending login started by BeginLogin whose state matches.
func (s *Service) CompleteLogin(ctx context.Context, sid, state, token string) (Identity, error) {
	if strings.TrimSpace(sid) == "" {
		return Identity{}, ErrInvalidInput
	}
	record, err := s.record(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Identity{}, ErrNoPendingLogin
		}
		return Identity{}, err
	}
	if record.Authenticated(s.now()) {
		return Identity{}, ErrAlreadyAuthenticated
	}
	if record.Status != enums.LoginInProgress || record.State == "" || !s.now().Before(record.ExpiresAt) {
		return Identity{}, ErrNoPendingLogin
	}
	if subtle.ConstantTimeCompare([]byte(record.State), []byte(state)) != 1 {
		if saveErr := s.markFailed(ctx, sid); saveErr != nil {
			return Identity{}, fmt.Errorf("record failed login: %w", saveErr)
		}
		return Identity{}, ErrStateMismatch
	}

	principal, tokenExpiresAt, err := s.tokens.VerifyToken(token)
	if err != nil {
		if saveErr := s.markFailed(ctx, sid); saveErr != nil {
			return Identity{}, fmt.Errorf("record failed login: %w", saveErr)
		}
		return Identity{}, err
	}

	expiresAt := s.now().Add(s.sessionTTL)
	if tokenExpiresAt.Before(expiresAt) {
		expiresAt = tokenExpiresAt
	}

	if err := s.sessions.Save(ctx, SessionRecord{
		SID:       sid,
		Principal: principal,
		Token:     token,
		Status:    enums.LoginSuccess,
		ExpiresAt: expiresAt,
	}, expiresAt.Sub(s.now())); err != nil {
		return Identity{}, fmt.Errorf("save identity session: %w", err)
	}

	return Identity{SID: sid, Principal: principal, Token: token}, nil
}

// Logout forgets the session's identity.
func (s *Service) Logout(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sid); err != nil {
		return fmt.Errorf("delete identity session: %w", err)
	}
	return nil
}

func (s *Service) ensureNotAuthenticated(ctx context.Context, sid string) error {
	record, err := s.record(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if record.Authenticated(s.now()) {
		return ErrAlreadyAuthenticated
	}
	return nil
}

func (s *Service) markFailed(ctx context.Context, sid string) error {
	return s.sessions.Save(ctx, SessionRecord{
		SID:       sid,
		Status:    enums.LoginError,
		ExpiresAt: s.now().Add(pendingLoginTTL),
	}, pendingLoginTTL)
}

func (s *Service) record(ctx context.Context, sid string) (SessionRecord, error) {
	if strings.TrimSpace(sid) == "" {
		return SessionRecord{}, ErrSessionNotFound
	}
	if s.sessions == nil {
		return SessionRecord{}, fmt.Errorf("session store is nil")
	}
	record, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return SessionRecord{}, err
	}
	return record, nil
}
