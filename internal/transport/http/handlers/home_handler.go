package handlers

import (
	"net/http"

	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
	"github.com/caffeinepub/connect-dating/internal/view"
)

type HomeHandler struct {
	pages *Pages
}

func NewHomeHandler(pages *Pages) *HomeHandler {
	return &HomeHandler{pages: pages}
}

func (h *HomeHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, authenticated := authsvc.IdentityFromContext(r.Context())
	h.pages.Render(w, r, view.PageHome, "Connect", view.HomeContent{Authenticated: authenticated})
}
