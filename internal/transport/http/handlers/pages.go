package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway"
	"github.com/caffeinepub/connect-dating/internal/query"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
	profilesvc "github.com/caffeinepub/connect-dating/internal/services/profiles"
	remotesvc "github.com/caffeinepub/connect-dating/internal/services/remote"
	httperrors "github.com/caffeinepub/connect-dating/internal/transport/http/errors"
	"github.com/caffeinepub/connect-dating/internal/view"
)

// Pages renders full pages inside the shared layout: navigation, login button,
// flashes, the first-run profile setup dialog and the match notification.
type Pages struct {
	renderer *view.PageRenderer
	remote   *remotesvc.Service
	logger   *zap.Logger
	now      func() time.Time
}

func NewPages(renderer *view.PageRenderer, remote *remotesvc.Service, logger *zap.Logger) *Pages {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pages{renderer: renderer, remote: remote, logger: logger, now: time.Now}
}

func (p *Pages) Render(w http.ResponseWriter, r *http.Request, page, title string, content any) {
	p.render(w, r, http.StatusOK, page, title, content, nil)
}

// RenderSetup renders page with the setup dialog showing form instead of an empty one.
func (p *Pages) RenderSetup(w http.ResponseWriter, r *http.Request, page, title string, content any, form view.ProfileForm) {
	p.render(w, r, http.StatusOK, page, title, content, &form)
}

func (p *Pages) Fail(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	p.render(w, r, status, view.PageError, title, view.ErrorContent{Title: title, Message: message}, nil)
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any, setup *view.ProfileForm) {
	ctx := r.Context()
	sess := SessionFromContext(ctx)
	_, authenticated := authsvc.IdentityFromContext(ctx)
	now := p.now()

	layout := view.NewLayout(title, r.URL.Path, sess.Status, authenticated, now)
	layout.Flash = sess.Flash()
	if notice, ok := sess.Notice(now); ok {
		layout.Match = view.NewMatchNotification(notice.DisplayName(), notice.Until, now)
	}
	if authenticated {
		switch {
		case setup != nil:
			layout.Setup = setup
		case p.remote != nil && p.remote.CallerProfile(ctx, query.FromContext(ctx)).NeedsSetup():
			layout.Setup = &view.ProfileForm{}
		}
	}

	if err := sess.Save(r, w); err != nil {
		p.logger.Warn("save session", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	var buf bytes.Buffer
	if err := p.renderer.Render(&buf, page, view.Page{Layout: layout, Content: content}); err != nil {
		p.logger.Error("render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Fragment renders a partial template without the layout.
func (p *Pages) Fragment(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	var buf bytes.Buffer
	if err := p.renderer.RenderFragment(&buf, name, data); err != nil {
		p.logger.Error("render fragment", zap.String("fragment", name), zap.Error(err))
		http.Error(w, "failed to render fragment", http.StatusInternalServerError)
		return
	}
	_, _ = buf.WriteTo(w)
}

// redirect saves the session and sends the browser to target with 303 See Other.
func (p *Pages) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if err := SessionFromContext(r.Context()).Save(r, w); err != nil {
		p.logger.Warn("save session", zap.Error(err))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// identity returns the caller and the session's cache client, or false for guests.
func identity(r *http.Request) (model.Principal, *query.Client, bool) {
	id, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		return "", nil, false
	}
	return id.Principal, query.FromContext(r.Context()), true
}

// actionError turns a failed backend write into a message for the flash line.
func actionError(action string, err error) string {
	if tf, ok := remotesvc.IsTooFast(err); ok {
		return fmt.Sprintf("You're going too fast. Try again in %d seconds.", tf.RetryAfter())
	}
	switch {
	case errors.Is(err, gateway.ErrNoConnection):
		return "Not connected to the service. Please try again shortly."
	case errors.Is(err, remotesvc.ErrValidation), errors.Is(err, profilesvc.ErrValidation):
		return fmt.Sprintf("Could not %s: the request was invalid.", action)
	default:
		return fmt.Sprintf("Failed to %s. Please try again.", action)
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: "UNAUTHORIZED", Message: "login required"})
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}
