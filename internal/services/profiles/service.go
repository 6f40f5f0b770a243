// Package profiles handles the profile setup and profile editor forms.
package profiles

import (
	"context"
	"errors"

	"github.com/caffeinepub/connect-dating/internal/query"
	"github.com/caffeinepub/connect-dating/internal/services/remote"
)

var ErrNoProfile = errors.New("caller has no profile")

type Service struct {
	remote *remote.Service
}

func NewService(remoteSvc *remote.Service) *Service {
	return &Service{remote: remoteSvc}
}

// Create submits a setup form as the caller's first profile.
func (s *Service) Create(ctx context.Context, c *query.Client, form Form) error {
	if err := form.Validate(); err != nil {
		return err
	}
	return s.remote.CreateProfile(ctx, c, form.ShortProfile())
}

// Save applies an editor form on top of the caller's current profile.
func (s *Service) Save(ctx context.Context, c *query.Client, form Form) error {
	if err := form.Validate(); err != nil {
		return err
	}
	existing, ok := s.remote.CallerProfile(ctx, c).Profile()
	if !ok {
		return ErrNoProfile
	}
	return s.remote.SaveProfile(ctx, c, form.Merge(existing))
}
