package handlers

import (
	"net/http"

	matchessvc "github.com/caffeinepub/connect-dating/internal/services/matches"
	"github.com/caffeinepub/connect-dating/internal/view"
)

type MatchesHandler struct {
	pages   *Pages
	service *matchessvc.Service
}

func NewMatchesHandler(pages *Pages, service *matchessvc.Service) *MatchesHandler {
	return &MatchesHandler{pages: pages, service: service}
}

func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, client, ok := identity(r)
	if !ok {
		h.pages.Render(w, r, view.PageMatches, "Matches", view.MatchesContent{
			LoginRequired: &view.LoginRequired{Message: "Please login to view your matches"},
		})
		return
	}

	list := h.service.List(r.Context(), client)
	content := view.MatchesContent{Loading: list.Loading}
	if list.Err != nil {
		content.Error = "Failed to load matches."
	}
	for _, item := range list.Items {
		name := item.Name
		if name == "" {
			name = item.User.Short() + "..."
		}
		content.Items = append(content.Items, view.MatchItem{
			Principal: item.User,
			Name:      name,
			Age:       item.Age,
			MatchedAt: item.MatchedAt,
		})
	}
	h.pages.Render(w, r, view.PageMatches, "Matches", content)
}
