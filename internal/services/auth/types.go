package auth

import (
	"errors"
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrSessionNotFound      = errors.New("session not found")
	ErrAlreadyAuthenticated = errors.New("user is already authenticated")
	ErrNoPendingLogin       = errors.New("no pending login")
	ErrStateMismatch        = errors.New("login state mismatch")
)

// SessionRecord is the identity state of one browser session.
type SessionRecord struct {
	SID       string
	Principal model.Principal
	Token     string
	State     string
	Status    enums.LoginStatus
	ExpiresAt time.Time
}

func (r SessionRecord) Authenticated(now time.Time) bool {
	return r.Status == enums.LoginSuccess && !r.Principal.IsZero() && r.Token != "" && now.Before(r.ExpiresAt)
}
