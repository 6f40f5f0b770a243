// Package conversations derives the inbox and the selected thread from the caller's messages.
package conversations

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/query"
	"github.com/caffeinepub/connect-dating/internal/services/remote"
)

const maxProfileLookups = 4

// SelectPartner picks the conversation to open. An explicit partner wins; malformed
// text is reported and leaves the selection unset. Without one the first partner is used.
func SelectPartner(explicit string, partners []Partner) (model.Principal, bool, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		p, err := model.ParsePrincipal(explicit)
		if err != nil {
			return "", false, err
		}
		return p, true, nil
	}
	if len(partners) == 0 {
		return "", false, nil
	}
	return partners[0].Principal, true, nil
}

type Inbox struct {
	Loading  bool
	Err      error
	Partners []Partner
	Names    map[model.Principal]string
	Selected model.Principal
	HasSel   bool
	Thread   []model.Message
}

func (i Inbox) Name(p model.Principal) string {
	if name := i.Names[p]; name != "" {
		return name
	}
	return p.Short() + "..."
}

type Service struct {
	remote *remote.Service
	logger *zap.Logger
}

func NewService(remoteSvc *remote.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{remote: remoteSvc, logger: logger}
}

// Inbox loads the caller's conversations and the selected thread.
func (s *Service) Inbox(ctx context.Context, c *query.Client, self model.Principal, explicit string) Inbox {
	messages := s.remote.Messages(ctx, c)
	inbox := Inbox{
		Loading:  messages.IsLoading,
		Err:      messages.Err,
		Partners: Partners(messages.Data, self),
	}

	selected, ok, err := SelectPartner(explicit, inbox.Partners)
	if err != nil {
		s.logger.Warn("invalid conversation partner", zap.String("partner", explicit), zap.Error(err))
	}
	if ok && selected != self {
		inbox.Selected = selected
		inbox.HasSel = true
		inbox.Thread = Thread(messages.Data, self, selected)
	}

	inbox.Names = s.names(ctx, c, inbox.Partners, inbox.Selected)
	return inbox
}

// Thread loads only the selected conversation, for the polled fragment.
func (s *Service) Thread(ctx context.Context, c *query.Client, self, partner model.Principal) []model.Message {
	return Thread(s.remote.Messages(ctx, c).Data, self, partner)
}

func (s *Service) names(ctx context.Context, c *query.Client, partners []Partner, selected model.Principal) map[model.Principal]string {
	targets := make([]model.Principal, 0, len(partners)+1)
	for _, p := range partners {
		targets = append(targets, p.Principal)
	}
	if !selected.IsZero() && !containsPartner(partners, selected) {
		targets = append(targets, selected)
	}

	names := make([]string, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxProfileLookups)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			profile := s.remote.UserProfile(gctx, c, target)
			if profile.HasData && profile.Data != nil {
				names[i] = profile.Data.FullName
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[model.Principal]string, len(targets))
	for i, target := range targets {
		if names[i] != "" {
			out[target] = names[i]
		}
	}
	return out
}

func containsPartner(partners []Partner, p model.Principal) bool {
	for _, partner := range partners {
		if partner.Principal == p {
			return true
		}
	}
	return false
}
