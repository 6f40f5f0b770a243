package handlers

import (
	"net/http"

	httperrors "github.com/caffeinepub/connect-dating/internal/transport/http/errors"
)

// ConnectionChecker reports whether the backend is currently reachable.
type ConnectionChecker interface {
	Connected() bool
}

type HealthHandler struct {
	backend ConnectionChecker
}

func NewHealthHandler(backend ConnectionChecker) *HealthHandler {
	return &HealthHandler{backend: backend}
}

func (h *HealthHandler) Get(w http.ResponseWriter, _ *http.Request) {
	connected := h.backend != nil && h.backend.Connected()
	httperrors.Write(w, http.StatusOK, struct {
		OK      bool `json:"ok"`
		Backend bool `json:"backend"`
	}{
		OK:      true,
		Backend: connected,
	})
}
