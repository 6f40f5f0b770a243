package gatewaytest

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway"
	"github.com/caffeinepub/connect-dating/internal/gateway/httpgw"
	httperrors "github.com/caffeinepub/connect-dating/internal/transport/http/errors"
)

// TokenVerifier resolves a bearer token to the caller identity.
type TokenVerifier interface {
	VerifyToken(raw string) (model.Principal, time.Time, error)
}

// TokenIssuer signs identity tokens for the development identity provider.
type TokenIssuer interface {
	IssueToken(principal model.Principal) (string, time.Time, error)
}

type Server struct {
	fake     *Fake
	verifier TokenVerifier
	issuer   TokenIssuer
	logger   *zap.Logger
}

func NewServer(fake *Fake, verifier TokenVerifier, issuer TokenIssuer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{fake: fake, verifier: verifier, issuer: issuer, logger: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Get("/idp/authorize", s.authorize)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/profile", s.createProfile)
		r.Put("/profile", s.saveProfile)
		r.Get("/profile", s.callerProfile)
		r.Get("/profile/current", s.currentProfile)
		r.Get("/users/{principal}/profile", s.userProfile)
		r.Get("/role", s.callerRole)
		r.Get("/role/admin", s.isAdmin)
		r.Post("/roles", s.assignRole)
		r.Get("/participants/active", s.activeParticipants)
		r.Post("/likes", s.like)
		r.Get("/matches", s.matches)
		r.Post("/messages", s.sendMessage)
		r.Get("/messages", s.messages)
	})

	return r
}

// authorize is a development identity provider: it derives an identity from the
// requested name and redirects back with a signed token.
var authorizeForm = template.Must(template.New("authorize").Parse(`<!doctype html>
<html><head><title>Sign in</title></head><body>
<form method="get" action="/idp/authorize">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<input type="hidden" name="state" value="{{.State}}">
<label>Identity name <input name="name" required autofocus></label>
<button type="submit">Continue</button>
</form>
</body></html>`))

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	if s.issuer == nil {
		writeError(w, http.StatusServiceUnavailable, "IDP_UNAVAILABLE", "identity provider is not configured")
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	redirectURI := strings.TrimSpace(r.URL.Query().Get("redirect_uri"))
	state := r.URL.Query().Get("state")
	if redirectURI == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "redirect_uri is required")
		return
	}
	if name == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = authorizeForm.Execute(w, struct{ RedirectURI, State string }{redirectURI, state})
		return
	}
	target, err := url.Parse(redirectURI)
	if err != nil || target.Scheme == "" || target.Host == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid redirect_uri")
		return
	}

	principal := model.SelfAuthenticating([]byte("dev-idp:" + strings.ToLower(name)))
	token, _, err := s.issuer.IssueToken(principal)
	if err != nil {
		s.logger.Error("issue identity token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to issue token")
		return
	}

	q := target.Query()
	q.Set("token", token)
	if state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) caller(r *http.Request) model.Principal {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok || s.verifier == nil {
		return model.Anonymous
	}
	principal, _, err := s.verifier.VerifyToken(raw)
	if err != nil {
		s.logger.Debug("reject bearer token", zap.Error(err))
		return model.Anonymous
	}
	return principal
}

func (s *Server) createProfile(w http.ResponseWriter, r *http.Request) {
	var req httpgw.ShortProfileDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	profile, err := httpgw.ShortProfileFromDTO(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := s.fake.As(s.caller(r)).CreateUserProfile(r.Context(), profile); err != nil {
		s.writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req httpgw.UserProfileDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	profile, err := httpgw.UserProfileFromDTO(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := s.fake.As(s.caller(r)).SaveCallerUserProfile(r.Context(), profile); err != nil {
		s.writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) callerProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.fake.As(s.caller(r)).GetCallerUserProfile(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, profileResponse(profile))
}

func (s *Server) currentProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.fake.As(s.caller(r)).GetCurrentUserProfile(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, profileResponse(&profile))
}

func (s *Server) userProfile(w http.ResponseWriter, r *http.Request) {
	user, err := model.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid principal")
		return
	}
	profile, err := s.fake.As(s.caller(r)).GetUserProfile(r.Context(), user)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, profileResponse(profile))
}

func (s *Server) callerRole(w http.ResponseWriter, r *http.Request) {
	role, err := s.fake.As(s.caller(r)).GetCallerUserRole(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, httpgw.RoleResponse{Role: string(role)})
}

func (s *Server) isAdmin(w http.ResponseWriter, r *http.Request) {
	isAdmin, err := s.fake.As(s.caller(r)).IsCallerAdmin(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, httpgw.IsAdminResponse{IsAdmin: isAdmin})
}

func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	var req httpgw.AssignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	user, err := model.ParsePrincipal(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid principal")
		return
	}
	role, ok := enums.ParseUserRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role")
		return
	}
	if err := s.fake.As(s.caller(r)).AssignCallerUserRole(r.Context(), user, role); err != nil {
		s.writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) activeParticipants(w http.ResponseWriter, r *http.Request) {
	items, err := s.fake.As(s.caller(r)).GetCurrentActiveParticipants(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	resp := httpgw.ParticipantsResponse{Items: make([]httpgw.ParticipantDTO, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, httpgw.ParticipantToDTO(item))
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (s *Server) like(w http.ResponseWriter, r *http.Request) {
	var req httpgw.LikeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	target, err := model.ParsePrincipal(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid principal")
		return
	}
	matched, err := s.fake.As(s.caller(r)).LikeUser(r.Context(), target)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, httpgw.LikeResponse{Matched: matched})
}

func (s *Server) matches(w http.ResponseWriter, r *http.Request) {
	items, err := s.fake.As(s.caller(r)).GetMatches(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	resp := httpgw.MatchesResponse{Items: make([]httpgw.MatchActionDTO, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, httpgw.MatchActionToDTO(item))
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req httpgw.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	recipient, err := model.ParsePrincipal(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid principal")
		return
	}
	if err := s.fake.As(s.caller(r)).SendMessage(r.Context(), recipient, req.Content); err != nil {
		s.writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) messages(w http.ResponseWriter, r *http.Request) {
	items, err := s.fake.As(s.caller(r)).GetMessages(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	resp := httpgw.MessagesResponse{Items: make([]httpgw.MessageDTO, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, httpgw.MessageToDTO(item))
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case errors.Is(err, gateway.ErrProfileExists):
		writeError(w, http.StatusConflict, "PROFILE_EXISTS", err.Error())
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, ErrNoProfile):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		s.logger.Error("stub backend call failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func profileResponse(profile *model.UserProfile) httpgw.ProfileResponse {
	if profile == nil {
		return httpgw.ProfileResponse{}
	}
	dto := httpgw.UserProfileToDTO(*profile)
	return httpgw.ProfileResponse{Profile: &dto}
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	httperrors.Write(w, status, httperrors.APIError{Code: code, Message: message})
}

func bearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}
