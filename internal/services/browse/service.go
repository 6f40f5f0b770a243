// Package browse derives the candidate deck a user swipes through and performs
// like and pass actions on it.
package browse

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/query"
	"github.com/caffeinepub/connect-dating/internal/services/remote"
)

var ErrNoCandidate = errors.New("no candidate to act on")

// Browsable keeps the participants that are neither self nor already matched, in backend order.
func Browsable(participants []model.Participant, self model.Principal, matches []model.Principal) []model.Principal {
	out := make([]model.Principal, 0, len(participants))
	for _, p := range participants {
		if p.Principal == self || model.ContainsPrincipal(matches, p.Principal) {
			continue
		}
		out = append(out, p.Principal)
	}
	return out
}

type Deck struct {
	Candidates []model.Principal
	Position   int
}

func NewDeck(candidates []model.Principal, cursor Cursor) Deck {
	return Deck{Candidates: candidates, Position: cursor.Resolve(candidates)}
}

func (d Deck) Exhausted() bool {
	return d.Position >= len(d.Candidates)
}

func (d Deck) Current() (model.Principal, bool) {
	if d.Exhausted() {
		return "", false
	}
	return d.Candidates[d.Position], true
}

// Remaining counts the current candidate and everyone after it.
func (d Deck) Remaining() int {
	if d.Exhausted() {
		return 0
	}
	return len(d.Candidates) - d.Position
}

// MatchNotice announces a mutual match until its deadline passes.
type MatchNotice struct {
	User  model.Principal `json:"u"`
	Name  string          `json:"n,omitempty"`
	Until time.Time       `json:"t"`
}

func (n MatchNotice) Visible(now time.Time) bool {
	return !n.User.IsZero() && now.Before(n.Until)
}

func (n MatchNotice) DisplayName() string {
	if n.Name == "" {
		return "your match"
	}
	return n.Name
}

type Page struct {
	Loading   bool
	Err       error
	Deck      Deck
	Candidate *model.UserProfile
	// LikeRetryAfter is the number of seconds until a like is accepted again.
	LikeRetryAfter int64
}

type LikeResult struct {
	Cursor  Cursor
	Matched bool
	Notice  *MatchNotice
}

type Dependencies struct {
	Remote      *remote.Service
	MatchNotice time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
}

type Service struct {
	remote *remote.Service
	notice time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewService(deps Dependencies) *Service {
	notice := deps.MatchNotice
	if notice <= 0 {
		notice = 5 * time.Second
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		remote: deps.Remote,
		notice: notice,
		logger: log,
		now:    now,
	}
}

// Candidates reads the browsable list for self from the session cache.
func (s *Service) Candidates(ctx context.Context, c *query.Client, self model.Principal) ([]model.Principal, query.State[[]model.Participant]) {
	participants := s.remote.ActiveParticipants(ctx, c)

	var matches []model.Principal
	if profile, ok := s.remote.CallerProfile(ctx, c).Profile(); ok {
		matches = profile.Matches
	}
	return Browsable(participants.Data, self, matches), participants
}

// Load builds the browse page for the cursor, including the current candidate's profile.
func (s *Service) Load(ctx context.Context, c *query.Client, self model.Principal, cursor Cursor) Page {
	candidates, participants := s.Candidates(ctx, c, self)
	page := Page{
		Loading: participants.IsLoading,
		Err:     participants.Err,
		Deck:    NewDeck(candidates, cursor),
	}

	if current, ok := page.Deck.Current(); ok {
		profile := s.remote.UserProfile(ctx, c, current)
		if profile.Err != nil {
			s.logger.Warn("load candidate profile", zap.String("candidate", current.String()), zap.Error(profile.Err))
		}
		if profile.HasData && profile.Data != nil {
			page.Candidate = profile.Data
		}
		page.LikeRetryAfter = s.remote.LikeCooldown(ctx, self)
	}
	return page
}

// Like likes target and advances the cursor past it. The cursor stays put on failure.
func (s *Service) Like(ctx context.Context, c *query.Client, self, target model.Principal, cursor Cursor) (LikeResult, error) {
	if target.IsZero() {
		return LikeResult{Cursor: cursor}, ErrNoCandidate
	}
	candidates, _ := s.Candidates(ctx, c, self)

	matched, err := s.remote.LikeUser(ctx, c, self, target)
	if err != nil {
		return LikeResult{Cursor: cursor}, err
	}

	result := LikeResult{
		Cursor:  cursor.Advance(candidates, target),
		Matched: matched,
	}
	if matched {
		notice := MatchNotice{User: target, Until: s.now().Add(s.notice)}
		if profile := query.Peek[*model.UserProfile](c, query.NewKey(remote.KeyUserProfile, target.String())); profile.HasData && profile.Data != nil {
			notice.Name = profile.Data.FullName
		}
		result.Notice = &notice
	}
	return result, nil
}

// Pass skips target without telling the backend.
func (s *Service) Pass(ctx context.Context, c *query.Client, self, target model.Principal, cursor Cursor) Cursor {
	candidates, _ := s.Candidates(ctx, c, self)
	return cursor.Advance(candidates, target)
}
