package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gin-gonic/gin"

	"github.com/leonardcser/kvd/internal/admin"
	"github.com/leonardcser/kvd/internal/config"
	"github.com/leonardcser/kvd/internal/logger"
	"github.com/leonardcser/kvd/internal/server"
	"github.com/leonardcser/kvd/internal/store"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	if err := run(); err != nil {
		logger.Errorf("kvd: %v", err)
		_ = logger.Close()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Infof("kvd: opened %s store at %s", cfg.Store, cfg.DB)

	srv, err := server.New(cfg.Server(), st)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx) })
	if cfg.AdminAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		h := admin.NewRouter(srv.Cache(), srv.Pool())
		g.Go(func() error { return admin.Serve(ctx, cfg.AdminAddr, h) })
	}

	err = g.Wait()
	logger.Infof("kvd: shutting down")
	return err
}
