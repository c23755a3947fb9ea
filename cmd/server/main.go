package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/agentmatch/internal/bootstrap"
	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/logger"
	"github.com/oggyb/agentmatch/internal/server"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	if cfg.App.ENV == "development" {
		if _, err := db.SeedTestData(rt.AppCtx.DB, cfg.House.Seed); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	httpSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      rt.HTTPHandler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	grpcSrv := server.NewGRPCServer(log, rt.GRPCRegistrars()...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting HTTP server", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return server.StartGRPCServer(gctx, cfg, grpcSrv)
	})
	if cfg.Jobs.Enabled {
		g.Go(func() error {
			rt.Scheduler.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
