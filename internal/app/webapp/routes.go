package webapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/config"
	"github.com/caffeinepub/connect-dating/internal/query"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
	browsesvc "github.com/caffeinepub/connect-dating/internal/services/browse"
	conversationsvc "github.com/caffeinepub/connect-dating/internal/services/conversations"
	matchessvc "github.com/caffeinepub/connect-dating/internal/services/matches"
	profilesvc "github.com/caffeinepub/connect-dating/internal/services/profiles"
	remotesvc "github.com/caffeinepub/connect-dating/internal/services/remote"
	"github.com/caffeinepub/connect-dating/internal/transport/http/handlers"
	"github.com/caffeinepub/connect-dating/internal/view"
)

type Dependencies struct {
	Sessions            *handlers.SessionStore
	AuthService         *authsvc.Service
	Registry            *query.Registry
	Backend             handlers.ConnectionChecker
	Renderer            *view.PageRenderer
	RemoteService       *remotesvc.Service
	BrowseService       *browsesvc.Service
	ConversationService *conversationsvc.Service
	MatchService        *matchessvc.Service
	ProfileService      *profilesvc.Service
	Logger              *zap.Logger
	Config              config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	pages := handlers.NewPages(deps.Renderer, deps.RemoteService, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.Backend)
	homeHandler := handlers.NewHomeHandler(pages)
	authHandler := handlers.NewAuthHandler(pages, deps.AuthService, deps.Registry, deps.Config.Identity.ProviderURL, deps.Logger)
	browseHandler := handlers.NewBrowseHandler(pages, deps.BrowseService, deps.Logger)
	matchesHandler := handlers.NewMatchesHandler(pages, deps.MatchService)
	messagesHandler := handlers.NewMessagesHandler(pages, deps.ConversationService, deps.RemoteService, deps.Config.Query.MessagesInterval, deps.Logger)
	profileHandler := handlers.NewProfileHandler(pages, deps.ProfileService, deps.RemoteService, deps.Logger)
	sessionMW := SessionMiddleware(deps.Sessions, deps.AuthService, deps.Registry, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Group(func(r chi.Router) {
		r.Use(sessionMW)

		r.Get("/", homeHandler.Get)

		r.Post("/login", authHandler.Login)
		r.Get("/auth/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)

		r.Route("/browse", func(r chi.Router) {
			r.Get("/", browseHandler.Get)
			r.Post("/like", browseHandler.Like)
			r.Post("/pass", browseHandler.Pass)
			r.Post("/restart", browseHandler.Restart)
		})

		r.Get("/matches", matchesHandler.Get)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", messagesHandler.Get)
			r.Get("/thread", messagesHandler.Thread)
			r.Post("/send", messagesHandler.Send)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Get("/edit", profileHandler.Edit)
			r.Post("/edit", profileHandler.Update)
			r.Post("/setup", profileHandler.Setup)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			pages.Fail(w, r, http.StatusNotFound, "Page Not Found", "The page you are looking for does not exist.")
		})
	})
}
