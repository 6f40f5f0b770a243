package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
	browsesvc "github.com/caffeinepub/connect-dating/internal/services/browse"
	"github.com/caffeinepub/connect-dating/internal/view"
)

type BrowseHandler struct {
	pages   *Pages
	service *browsesvc.Service
	logger  *zap.Logger
}

func NewBrowseHandler(pages *Pages, service *browsesvc.Service, logger *zap.Logger) *BrowseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowseHandler{pages: pages, service: service, logger: logger}
}

func (h *BrowseHandler) Get(w http.ResponseWriter, r *http.Request) {
	self, client, ok := identity(r)
	if !ok {
		h.pages.Render(w, r, view.PageBrowse, "Browse", view.BrowseContent{
			LoginRequired: &view.LoginRequired{Message: "Please login to browse profiles"},
		})
		return
	}

	page := h.service.Load(r.Context(), client, self, SessionFromContext(r.Context()).Cursor())
	content := view.BrowseContent{
		Loading:   page.Loading,
		Exhausted: !page.Loading && page.Deck.Exhausted(),
		Remaining: page.Deck.Remaining(),
	}
	if page.Err != nil {
		content.Error = "Failed to load profiles."
	}
	if current, ok := page.Deck.Current(); ok {
		card := view.NewProfileCard(current, page.Candidate)
		content.Card = &card
		content.LikeRetryAfter = page.LikeRetryAfter
	}
	h.pages.Render(w, r, view.PageBrowse, "Browse", content)
}

func (h *BrowseHandler) Like(w http.ResponseWriter, r *http.Request) {
	self, client, ok := identity(r)
	if !ok {
		h.pages.redirect(w, r, "/browse")
		return
	}
	sess := SessionFromContext(r.Context())

	target, err := candidateFromForm(r)
	if err != nil {
		sess.AddFlash("That profile is no longer available.")
		h.pages.redirect(w, r, "/browse")
		return
	}

	result, err := h.service.Like(r.Context(), client, self, target, sess.Cursor())
	if err != nil {
		h.logger.Warn("like user", zap.String("target", target.String()), zap.Error(err))
		sess.AddFlash(actionError("like this profile", err))
		h.pages.redirect(w, r, "/browse")
		return
	}

	sess.SetCursor(result.Cursor)
	if result.Notice != nil {
		sess.SetNotice(*result.Notice)
	}
	h.pages.redirect(w, r, "/browse")
}

func (h *BrowseHandler) Pass(w http.ResponseWriter, r *http.Request) {
	self, client, ok := identity(r)
	if !ok {
		h.pages.redirect(w, r, "/browse")
		return
	}
	sess := SessionFromContext(r.Context())

	target, err := candidateFromForm(r)
	if err != nil {
		h.pages.redirect(w, r, "/browse")
		return
	}
	sess.SetCursor(h.service.Pass(r.Context(), client, self, target, sess.Cursor()))
	h.pages.redirect(w, r, "/browse")
}

// Restart starts the deck over from the first candidate.
func (h *BrowseHandler) Restart(w http.ResponseWriter, r *http.Request) {
	SessionFromContext(r.Context()).SetCursor(browsesvc.Restart())
	h.pages.redirect(w, r, "/browse")
}

func candidateFromForm(r *http.Request) (model.Principal, error) {
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	raw := strings.TrimSpace(r.PostFormValue("candidate"))
	if raw == "" {
		return "", errors.New("candidate is required")
	}
	return model.ParsePrincipal(raw)
}
