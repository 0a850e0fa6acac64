package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stickntrade/casino/internal/api"
	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/auth"
	"github.com/stickntrade/casino/internal/config"
	"github.com/stickntrade/casino/internal/control"
	"github.com/stickntrade/casino/internal/database"
	"github.com/stickntrade/casino/internal/engine"
	"github.com/stickntrade/casino/internal/history"
	"github.com/stickntrade/casino/internal/ledger"
	"github.com/stickntrade/casino/internal/limits"
	"github.com/stickntrade/casino/internal/rng"
	"github.com/stickntrade/casino/internal/solo"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment variables")
	}

	cfg := config.Load()

	log.SetFormatter(&log.JSONFormatter{})
	if os.Getenv("CASINO_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	historySvc, err := history.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer historySvc.Close()

	auditSvc := audit.New(db.DB)
	ledgerSvc := ledger.New(db.DB, auditSvc, ledger.RewardPolicy{
		Base: cfg.Game.RewardBase,
		Step: cfg.Game.RewardStep,
		Cap:  cfg.Game.RewardCap,
	})
	controlSvc, err := control.New(db.DB, auditSvc)
	if err != nil {
		log.WithError(err).Fatal("failed to load control state")
	}
	limitsSvc := limits.New(limits.Bounds{Min: cfg.Game.MinStake, Max: cfg.Game.MaxStake})
	limitsSvc.SetTable("baccarat", limits.Bounds{Min: cfg.Game.BaccaratMinStake, Max: cfg.Game.MaxStake})
	authSvc := auth.New(db.DB, &cfg.Auth, auditSvc, ledgerSvc, cfg.Game.StartingCredits)

	rngSvc := rng.New()
	hub := api.NewHub()

	eng := engine.New(engine.Config{
		BettingSeconds: cfg.Game.BettingSeconds,
		SettleDelay:    cfg.Game.SettleDelay,
		ResetDelay:     cfg.Game.ResetDelay,
	}, quartz.NewReal(), rngSvc, engine.Deps{
		Broadcaster: hub,
		Ledger:      ledgerSvc,
		Gate:        controlSvc,
		Limits:      limitsSvc,
		History:     historySvc,
		Audit:       auditSvc,
	})

	soloSvc := solo.New(ledgerSvc, controlSvc, limitsSvc, rngSvc)

	handler := api.New(authSvc, ledgerSvc, eng, soloSvc, controlSvc, historySvc, auditSvc, hub)
	router := handler.SetupRouter()
	router.NotFoundHandler = http.HandlerFunc(api.NotFoundHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx)
	})

	g.Go(func() error {
		log.WithField("port", cfg.Server.Port).Info("casino server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
	log.Info("server stopped")
}
