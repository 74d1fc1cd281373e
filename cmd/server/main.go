package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/toptrumps-live/match-backend/internal/config"
	"github.com/toptrumps-live/match-backend/internal/deck"
	"github.com/toptrumps-live/match-backend/internal/httpapi"
	"github.com/toptrumps-live/match-backend/internal/hub"
	"github.com/toptrumps-live/match-backend/internal/pubsub"
	"github.com/toptrumps-live/match-backend/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := buildLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var matches store.MatchStore
	var decks deck.Source
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL, logger.Named("store"))
		if err != nil {
			logger.Fatal("opening postgres", zap.Error(err))
		}
		matches, decks = pg, pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store; matches will not survive a restart")
		mem := store.NewMemory()
		matches, decks = mem, mem
	}

	var pub pubsub.Publisher = pubsub.Noop{}
	var remote hub.RemoteSubscriber
	if cfg.RedisAddr != "" {
		rd, err := pubsub.NewRedis(cfg.RedisAddr, cfg.RedisPassword, logger.Named("pubsub"))
		if err != nil {
			logger.Fatal("opening redis", zap.Error(err))
		}
		defer func() { _ = rd.Close() }()
		pub, remote = rd, rd
	}

	h := hub.NewHub(ctx, matches, decks, pub, remote, logger)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.SetupRoutes(h, matches, decks, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
