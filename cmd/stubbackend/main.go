// Command stubbackend serves the in-memory backend and a development identity
// provider so the web app can run without the real service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/config"
	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway/gatewaytest"
	"github.com/caffeinepub/connect-dating/internal/infra/logger"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
)

func main() {
	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fake := gatewaytest.NewFake()
	if cfg.Stub.Seed {
		seed(fake, time.Now())
		log.Info("seeded stub profiles", zap.Int("count", len(seedProfiles)))
	}
	tokens := authsvc.NewTokenManager(cfg.Identity.TokenSecret, cfg.Stub.TokenTTL)

	server := &http.Server{
		Addr:              cfg.Stub.Addr,
		Handler:           gatewaytest.NewServer(fake, tokens, tokens, log.Named("stub")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("stub backend started", zap.String("addr", cfg.Stub.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown stub backend", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("stub backend failed", zap.Error(err))
		}
	}
}

var seedProfiles = []model.UserProfile{
	{
		FullName:        "Ana Souza",
		Age:             27,
		Bio:             "Coffee, climbing and Portuguese poetry.",
		Interests:       []string{"climbing", "poetry"},
		NativeLanguages: []string{"Portuguese"},
		TargetLanguages: []string{"English", "French"},
		CurrentStatus:   enums.StatusActive,
	},
	{
		FullName:        "Kenji Mori",
		Age:             31,
		Bio:             "Amateur chef looking for a language partner.",
		Interests:       []string{"cooking", "cycling"},
		NativeLanguages: []string{"Japanese"},
		TargetLanguages: []string{"Spanish"},
		CurrentStatus:   enums.StatusActive,
	},
	{
		FullName:        "Léa Martin",
		Age:             24,
		Bio:             "Film nerd. Will trade French for Italian.",
		Interests:       []string{"cinema"},
		NativeLanguages: []string{"French"},
		TargetLanguages: []string{"Italian", "English"},
		CurrentStatus:   enums.StatusOffline,
	},
}

// seed registers the demo profiles under the identities the development
// identity provider derives from their first names.
func seed(fake *gatewaytest.Fake, now time.Time) {
	for _, profile := range seedProfiles {
		name := strings.ToLower(strings.Fields(profile.FullName)[0])
		profile.LastActive = now
		profile.LastMessageCheck = now
		fake.PutProfile(model.SelfAuthenticating([]byte("dev-idp:"+name)), profile)
	}
}
