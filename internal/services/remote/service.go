// Package remote exposes the backend operations the pages use, as cached reads and
// invalidating mutations over a session's query client.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/domain/rules"
	"github.com/caffeinepub/connect-dating/internal/gateway"
	"github.com/caffeinepub/connect-dating/internal/query"
	"github.com/caffeinepub/connect-dating/internal/services/rate"
)

const (
	KeyCurrentUserProfile = "currentUserProfile"
	KeyActiveParticipants = "activeParticipants"
	KeyMatches            = "matches"
	KeyMessages           = "messages"
	KeyUserProfile        = "userProfile"
	KeyCallerRole         = "callerRole"
	KeyIsCallerAdmin      = "isCallerAdmin"
)

var ErrValidation = errors.New("validation error")

type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too fast"
}

func (e TooFastError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

type Limiter interface {
	Allow(ctx context.Context, action rate.Action, identity string) (int64, bool, error)
	RetryAfter(ctx context.Context, action rate.Action, identity string) (int64, error)
}

type Dependencies struct {
	ActiveParticipantsInterval time.Duration
	MessagesInterval           time.Duration
	Limiter                    Limiter
	Logger                     *zap.Logger
}

type Service struct {
	participantsInterval time.Duration
	messagesInterval     time.Duration
	limiter              Limiter
	logger               *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		participantsInterval: deps.ActiveParticipantsInterval,
		messagesInterval:     deps.MessagesInterval,
		limiter:              deps.Limiter,
		logger:               log,
	}
}

// CallerProfileQuery reads the caller's own profile. A fetched nil profile means
// the caller has not created one yet.
func (s *Service) CallerProfileQuery(ctx context.Context, c *query.Client) query.State[*model.UserProfile] {
	return query.Fetch(ctx, c, query.NewKey(KeyCurrentUserProfile), query.Options{},
		func(ctx context.Context, b gateway.Backend) (*model.UserProfile, error) {
			return b.GetCallerUserProfile(ctx)
		})
}

func (s *Service) CallerProfile(ctx context.Context, c *query.Client) model.ProfileState {
	return ProfileStateOf(s.CallerProfileQuery(ctx, c))
}

// ProfileStateOf folds a caller profile read into the profile state shown by the shell.
func ProfileStateOf(state query.State[*model.UserProfile]) model.ProfileState {
	switch {
	case state.IsLoading:
		return model.LoadingProfile()
	case state.Err != nil || !state.IsFetched:
		return model.NotLoadedProfile()
	case !state.HasData || state.Data == nil:
		return model.MissingProfile()
	default:
		return model.PresentProfile(state.Data.Clone())
	}
}

// CurrentUserProfile reads the caller's profile through the strict backend call,
// which fails with gateway.ErrNotFound when there is none.
func (s *Service) CurrentUserProfile(ctx context.Context, c *query.Client) query.State[model.UserProfile] {
	return query.Fetch(ctx, c, query.NewKey(KeyCurrentUserProfile, "current"), query.Options{},
		func(ctx context.Context, b gateway.Backend) (model.UserProfile, error) {
			return b.GetCurrentUserProfile(ctx)
		})
}

func (s *Service) ActiveParticipants(ctx context.Context, c *query.Client) query.State[[]model.Participant] {
	return query.Fetch(ctx, c, query.NewKey(KeyActiveParticipants), query.Options{RefetchInterval: s.participantsInterval},
		func(ctx context.Context, b gateway.Backend) ([]model.Participant, error) {
			return b.GetCurrentActiveParticipants(ctx)
		})
}

func (s *Service) Matches(ctx context.Context, c *query.Client) query.State[[]model.MatchAction] {
	return query.Fetch(ctx, c, query.NewKey(KeyMatches), query.Options{},
		func(ctx context.Context, b gateway.Backend) ([]model.MatchAction, error) {
			return b.GetMatches(ctx)
		})
}

func (s *Service) Messages(ctx context.Context, c *query.Client) query.State[[]model.Message] {
	return query.Fetch(ctx, c, query.NewKey(KeyMessages), query.Options{RefetchInterval: s.messagesInterval},
		func(ctx context.Context, b gateway.Backend) ([]model.Message, error) {
			return b.GetMessages(ctx)
		})
}

func (s *Service) UserProfile(ctx context.Context, c *query.Client, user model.Principal) query.State[*model.UserProfile] {
	return query.Fetch(ctx, c, query.NewKey(KeyUserProfile, user.String()), query.Options{},
		func(ctx context.Context, b gateway.Backend) (*model.UserProfile, error) {
			return b.GetUserProfile(ctx, user)
		})
}

func (s *Service) CallerRole(ctx context.Context, c *query.Client) query.State[enums.UserRole] {
	return query.Fetch(ctx, c, query.NewKey(KeyCallerRole), query.Options{},
		func(ctx context.Context, b gateway.Backend) (enums.UserRole, error) {
			return b.GetCallerUserRole(ctx)
		})
}

func (s *Service) IsCallerAdmin(ctx context.Context, c *query.Client) query.State[bool] {
	return query.Fetch(ctx, c, query.NewKey(KeyIsCallerAdmin), query.Options{},
		func(ctx context.Context, b gateway.Backend) (bool, error) {
			return b.IsCallerAdmin(ctx)
		})
}

func (s *Service) CreateProfile(ctx context.Context, c *query.Client, profile model.ShortProfile) error {
	if strings.TrimSpace(profile.FullName) == "" || !rules.AgeAllowed(profile.Age) {
		return ErrValidation
	}
	_, err := query.Mutate(ctx, c, func(ctx context.Context, b gateway.Backend) (struct{}, error) {
		return struct{}{}, b.CreateUserProfile(ctx, profile)
	}, KeyCurrentUserProfile)
	return err
}

func (s *Service) SaveProfile(ctx context.Context, c *query.Client, profile model.UserProfile) error {
	if strings.TrimSpace(profile.FullName) == "" || !rules.AgeAllowed(profile.Age) {
		return ErrValidation
	}
	_, err := query.Mutate(ctx, c, func(ctx context.Context, b gateway.Backend) (struct{}, error) {
		return struct{}{}, b.SaveCallerUserProfile(ctx, profile)
	}, KeyCurrentUserProfile)
	return err
}

// LikeUser likes target on behalf of self and reports whether the like produced a match.
func (s *Service) LikeUser(ctx context.Context, c *query.Client, self, target model.Principal) (bool, error) {
	if target.IsZero() || target == self {
		return false, ErrValidation
	}
	if err := s.checkRate(ctx, rate.ActionLike, self); err != nil {
		return false, err
	}
	return query.Mutate(ctx, c, func(ctx context.Context, b gateway.Backend) (bool, error) {
		return b.LikeUser(ctx, target)
	}, KeyMatches, KeyCurrentUserProfile)
}

// SendMessage sends trimmed content from self to recipient.
func (s *Service) SendMessage(ctx context.Context, c *query.Client, self, recipient model.Principal, content string) error {
	content = strings.TrimSpace(content)
	if recipient.IsZero() || recipient == self || content == "" || utf8.RuneCountInString(content) > rules.MaxMessageLength {
		return ErrValidation
	}
	if err := s.checkRate(ctx, rate.ActionMessage, self); err != nil {
		return err
	}
	_, err := query.Mutate(ctx, c, func(ctx context.Context, b gateway.Backend) (struct{}, error) {
		return struct{}{}, b.SendMessage(ctx, recipient, content)
	}, KeyMessages)
	return err
}

func (s *Service) AssignRole(ctx context.Context, c *query.Client, user model.Principal, role enums.UserRole) error {
	if user.IsZero() {
		return ErrValidation
	}
	if _, ok := enums.ParseUserRole(string(role)); !ok {
		return ErrValidation
	}
	_, err := query.Mutate(ctx, c, func(ctx context.Context, b gateway.Backend) (struct{}, error) {
		return struct{}{}, b.AssignCallerUserRole(ctx, user, role)
	}, KeyCallerRole, KeyIsCallerAdmin)
	return err
}

// LikeCooldown reports how many seconds self must wait before the next like is accepted.
// It is zero when likes are allowed or the limiter is unavailable.
func (s *Service) LikeCooldown(ctx context.Context, self model.Principal) int64 {
	if s.limiter == nil || self.IsZero() {
		return 0
	}
	retryAfter, err := s.limiter.RetryAfter(ctx, rate.ActionLike, self.String())
	if err != nil {
		s.logger.Warn("rate limiter unavailable", zap.String("action", string(rate.ActionLike)), zap.Error(err))
		return 0
	}
	return retryAfter
}

// checkRate fails open when the limiter store is unavailable.
func (s *Service) checkRate(ctx context.Context, action rate.Action, self model.Principal) error {
	if s.limiter == nil || self.IsZero() {
		return nil
	}
	retryAfter, ok, err := s.limiter.Allow(ctx, action, self.String())
	if err != nil {
		s.logger.Warn("rate limiter unavailable", zap.String("action", string(action)), zap.Error(err))
		return nil
	}
	if !ok {
		return fmt.Errorf("%s: %w", action, TooFastError{RetryAfterSec: retryAfter})
	}
	return nil
}
