package webapp

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/query"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
	"github.com/caffeinepub/connect-dating/internal/transport/http/handlers"
)

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

// SessionMiddleware loads the browser session and attaches its login status, its identity
// when authenticated, and the session's query client. Guests get a disconnected client.
func SessionMiddleware(store *handlers.SessionStore, authService *authsvc.Service, registry *query.Registry, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := store.Load(r)
			if err != nil && log != nil {
				log.Debug("discard unreadable session cookie", zap.Error(err))
			}
			sid := sess.SID()
			ctx := r.Context()

			status, err := authService.Status(ctx, sid)
			if err != nil && log != nil {
				log.Warn("read login status", zap.Error(err))
			}
			sess.Status = status
			if !sess.Status.Valid() {
				sess.Status = enums.LoginIdle
			}

			identity, ok, err := authService.Identity(ctx, sid)
			if err != nil && log != nil {
				log.Warn("read identity session", zap.Error(err))
			}

			ctx = handlers.WithSession(ctx, sess)
			if ok {
				ctx = authsvc.WithIdentity(ctx, identity)
			}
			ctx = query.WithClient(ctx, registry.ForSession(sid, identity.Token))

			if sess.Dirty() {
				if err := sess.Save(r, w); err != nil && log != nil {
					log.Warn("save session", zap.Error(err))
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
