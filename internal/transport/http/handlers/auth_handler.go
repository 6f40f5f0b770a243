package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
)

// SessionCaches drops a session's cached backend data.
type SessionCaches interface {
	Clear(sid string)
}

type AuthHandler struct {
	pages       *Pages
	service     *authsvc.Service
	caches      SessionCaches
	providerURL string
	logger      *zap.Logger
}

func NewAuthHandler(pages *Pages, service *authsvc.Service, caches SessionCaches, providerURL string, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		pages:       pages,
		service:     service,
		caches:      caches,
		providerURL: providerURL,
		logger:      logger,
	}
}

// Login starts a login round trip through the identity provider. A session that
// still holds an identity is logged out and the login is retried once.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	sid := sess.SID()

	state, err := h.service.BeginLogin(r.Context(), sid)
	if errors.Is(err, authsvc.ErrAlreadyAuthenticated) {
		h.logger.Debug("session already authenticated, restarting login", zap.String("sid", sid))
		h.clear(r, sid)
		state, err = h.service.BeginLogin(r.Context(), sid)
	}
	if err != nil {
		h.logger.Error("begin login", zap.Error(err))
		sess.AddFlash("Login failed. Please try again.")
		h.pages.redirect(w, r, "/")
		return
	}

	target, err := h.authorizeURL(r, state)
	if err != nil {
		h.logger.Error("build identity provider url", zap.Error(err))
		sess.AddFlash("Login is not available right now.")
		h.pages.redirect(w, r, "/")
		return
	}
	h.pages.redirect(w, r, target)
}

// Callback binds the identity token returned by the provider to the session. Only a
// login started from this session, echoing its state, is accepted.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	sid := sess.SID()
	q := r.URL.Query()

	identity, err := h.service.CompleteLogin(r.Context(), sid, strings.TrimSpace(q.Get("state")), strings.TrimSpace(q.Get("token")))
	if err != nil {
		h.logger.Warn("complete login", zap.Error(err))
		sess.AddFlash("Login failed. Please try again.")
		h.pages.redirect(w, r, "/")
		return
	}

	h.caches.Clear(sid)
	sess.ResetUI()
	h.logger.Info("login completed", zap.String("principal", identity.Principal.String()))
	h.pages.redirect(w, r, "/")
}

// Logout forgets the identity and everything cached for it.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	h.clear(r, sess.SID())
	sess.ResetUI()
	h.pages.redirect(w, r, "/")
}

func (h *AuthHandler) clear(r *http.Request, sid string) {
	if err := h.service.Logout(r.Context(), sid); err != nil {
		h.logger.Warn("logout", zap.Error(err))
	}
	h.caches.Clear(sid)
}

func (h *AuthHandler) authorizeURL(r *http.Request, state string) (string, error) {
	target, err := url.Parse(h.providerURL)
	if err != nil {
		return "", err
	}
	q := target.Query()
	q.Set("redirect_uri", callbackURL(r))
	q.Set("state", state)
	target.RawQuery = q.Encode()
	return target.String(), nil
}

func callbackURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/auth/callback"
}
