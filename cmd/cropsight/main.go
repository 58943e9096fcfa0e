// Package main runs the cropsight analysis server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cropsight/cropsight/internal/config"
	"github.com/cropsight/cropsight/internal/loader"
	"github.com/cropsight/cropsight/internal/model"
	"github.com/cropsight/cropsight/internal/server"
	"github.com/cropsight/cropsight/internal/store"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := loader.NewRegistry()
	model.RegisterAll(registry)
	configs := model.DefaultConfigs()

	paths, err := loader.Scan(cfg.ModelsDir, configs, log)
	if err != nil {
		return err
	}
	log.WithField("count", len(paths)).Info("model artifacts discovered")

	cache := loader.NewCache(registry, configs, paths, log)
	srv := server.New(cfg, log, st, cache)

	httpServer := &http.Server{
		Addr:    cfg.Host,
		Handler: srv.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Host).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
