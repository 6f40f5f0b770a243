// Package gateway defines the operations the UI consumes from the remote backend service.
package gateway

import (
	"context"
	"errors"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
)

// ErrNoConnection means no live backend connection exists for the caller.
var ErrNoConnection = errors.New("backend connection unavailable")

// ErrProfileExists is returned by CreateUserProfile when the caller already has a profile.
var ErrProfileExists = errors.New("profile already exists")

// ErrNotFound is returned by operations whose target must exist.
var ErrNotFound = errors.New("not found")

// Backend is the caller-bound view of the remote service. Every call is made on behalf
// of the identity the implementation was created for.
type Backend interface {
	CreateUserProfile(ctx context.Context, profile model.ShortProfile) error
	SaveCallerUserProfile(ctx context.Context, profile model.UserProfile) error
	GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error)
	GetCurrentUserProfile(ctx context.Context) (model.UserProfile, error)
	GetUserProfile(ctx context.Context, user model.Principal) (*model.UserProfile, error)
	GetCallerUserRole(ctx context.Context) (enums.UserRole, error)
	IsCallerAdmin(ctx context.Context) (bool, error)
	AssignCallerUserRole(ctx context.Context, user model.Principal, role enums.UserRole) error
	GetCurrentActiveParticipants(ctx context.Context) ([]model.Participant, error)
	LikeUser(ctx context.Context, target model.Principal) (bool, error)
	GetMatches(ctx context.Context) ([]model.MatchAction, error)
	SendMessage(ctx context.Context, recipient model.Principal, content string) error
	GetMessages(ctx context.Context) ([]model.Message, error)
}

// Connector hands out caller-bound backends for identity tokens.
type Connector interface {
	Connect(token string) Backend
}
