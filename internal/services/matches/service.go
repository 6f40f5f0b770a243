// Package matches derives the caller's mutual matches.
package matches

import (
	"context"
	"sort"
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/query"
	"github.com/caffeinepub/connect-dating/internal/services/remote"
)

// Mutual keeps the match actions whose user is listed in the caller's profile matches.
func Mutual(actions []model.MatchAction, profileMatches []model.Principal) []model.MatchAction {
	out := make([]model.MatchAction, 0, len(actions))
	for _, action := range actions {
		if model.ContainsPrincipal(profileMatches, action.User) {
			out = append(out, action)
		}
	}
	return out
}

type MatchItem struct {
	User      model.Principal
	Name      string
	Age       int
	MatchedAt time.Time
}

type List struct {
	Loading bool
	Err     error
	Items   []MatchItem
}

type Service struct {
	remote *remote.Service
}

func NewService(remoteSvc *remote.Service) *Service {
	return &Service{remote: remoteSvc}
}

// List loads mutual matches, most recent first, with names where profiles are known.
func (s *Service) List(ctx context.Context, c *query.Client) List {
	actions := s.remote.Matches(ctx, c)

	var profileMatches []model.Principal
	if profile, ok := s.remote.CallerProfile(ctx, c).Profile(); ok {
		profileMatches = profile.Matches
	}

	mutual := Mutual(actions.Data, profileMatches)
	items := make([]MatchItem, 0, len(mutual))
	for _, action := range mutual {
		item := MatchItem{User: action.User, MatchedAt: action.Timestamp}
		if profile := s.remote.UserProfile(ctx, c, action.User); profile.HasData && profile.Data != nil {
			item.Name = profile.Data.FullName
			item.Age = profile.Data.Age
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].MatchedAt.After(items[j].MatchedAt)
	})

	return List{
		Loading: actions.IsLoading,
		Err:     actions.Err,
		Items:   items,
	}
}
