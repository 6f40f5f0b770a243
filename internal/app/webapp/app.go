package webapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/config"
	"github.com/caffeinepub/connect-dating/internal/gateway"
	"github.com/caffeinepub/connect-dating/internal/gateway/httpgw"
	"github.com/caffeinepub/connect-dating/internal/jobs/sweep"
	"github.com/caffeinepub/connect-dating/internal/query"
	redrepo "github.com/caffeinepub/connect-dating/internal/repo/redis"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
	browsesvc "github.com/caffeinepub/connect-dating/internal/services/browse"
	conversationsvc "github.com/caffeinepub/connect-dating/internal/services/conversations"
	matchessvc "github.com/caffeinepub/connect-dating/internal/services/matches"
	profilesvc "github.com/caffeinepub/connect-dating/internal/services/profiles"
	ratesvc "github.com/caffeinepub/connect-dating/internal/services/rate"
	remotesvc "github.com/caffeinepub/connect-dating/internal/services/remote"
	"github.com/caffeinepub/connect-dating/internal/transport/http/handlers"
	"github.com/caffeinepub/connect-dating/internal/view"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	redis      *goredis.Client
	registry   *query.Registry
	sweeper    *sweep.Scheduler
	httpRouter http.Handler
}

// Options replaces parts of the wiring, mainly for tests.
type Options struct {
	// Connector overrides the HTTP gateway to the backend.
	Connector gateway.Connector
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	return NewWithOptions(ctx, cfg, log, Options{})
}

func NewWithOptions(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	backendClient, err := httpgw.NewClient(cfg.Backend.URL, httpgw.Options{
		Timeout:     cfg.Backend.Timeout,
		MaxFailures: cfg.Backend.Breaker.MaxFailures,
		OpenTimeout: cfg.Backend.Breaker.OpenTimeout,
		Logger:      log.Named("gateway"),
	})
	if err != nil {
		return nil, fmt.Errorf("create backend gateway: %w", err)
	}
	var connector gateway.Connector = backendClient
	if opts.Connector != nil {
		connector = opts.Connector
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	var (
		sessionStore authsvc.SessionStore
		limiter      remotesvc.Limiter
	)
	if err := redrepo.Ping(ctx, redisClient); err != nil {
		log.Warn("redis init failed, continuing with in-memory sessions and no throttling", zap.Error(err))
		sessionStore = authsvc.NewMemoryStore()
	} else {
		sessionStore = redrepo.NewSessionRepo(redisClient)
		limiter = ratesvc.NewLimiter(redrepo.NewRateRepo(redisClient), ratesvc.Limits{
			LikesPerMinute:    cfg.Limits.LikesPerMinute,
			LikesPer10Seconds: cfg.Limits.LikesPer10Seconds,
			MessagesPerMinute: cfg.Limits.MessagesPerMinute,
		})
	}

	tokenManager := authsvc.NewTokenManager(cfg.Identity.TokenSecret, cfg.Identity.SessionTTL)
	authService := authsvc.NewService(tokenManager, sessionStore, cfg.Identity.SessionTTL)
	registry := query.NewRegistry(ctx, connector, query.ClientOptions{
		WatchIdle: cfg.Query.WatchIdle,
		Logger:    log.Named("query"),
	})

	remoteService := remotesvc.NewService(remotesvc.Dependencies{
		ActiveParticipantsInterval: cfg.Query.ActiveParticipantsInterval,
		MessagesInterval:           cfg.Query.MessagesInterval,
		Limiter:                    limiter,
		Logger:                     log,
	})
	browseService := browsesvc.NewService(browsesvc.Dependencies{
		Remote:      remoteService,
		MatchNotice: cfg.Browse.MatchNotice,
		Logger:      log,
	})
	conversationService := conversationsvc.NewService(remoteService, log)
	matchesService := matchessvc.NewService(remoteService)
	profileService := profilesvc.NewService(remoteService)

	renderer, err := view.NewPageRenderer()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	sweeper, err := sweep.Start(ctx, sweep.New(registry, cfg.Query.ClientIdleTTL, log), cfg.Query.SweepInterval, log)
	if err != nil {
		return nil, fmt.Errorf("start cache sweep: %w", err)
	}

	RegisterRoutes(r, Dependencies{
		Sessions:            handlers.NewSessionStore(cfg.Session.CookieName, cfg.Session.Secret, cfg.Session.MaxAge, cfg.Session.Secure),
		AuthService:         authService,
		Registry:            registry,
		Backend:             backendClient,
		Renderer:            renderer,
		RemoteService:       remoteService,
		BrowseService:       browseService,
		ConversationService: conversationService,
		MatchService:        matchesService,
		ProfileService:      profileService,
		Logger:              log,
		Config:              cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		redis:      redisClient,
		registry:   registry,
		sweeper:    sweeper,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("web server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.sweeper != nil {
		if err := a.sweeper.Stop(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	if a.registry != nil {
		a.registry.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
