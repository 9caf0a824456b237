// Command cinemad serves shows, wallets and seat reservations over HTTP.
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
	"github.com/terraskye/cinema/internal/config"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("load configuration")
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("cinemad stopped")
	}
}

func newLogger(cfg config.Config) *logrus.Entry {
	l := logrus.New()
	l.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logrus.NewEntry(l).WithField("service", "cinemad")
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Entry) error {
	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := app.http.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.shutdown(shutdownCtx)
}
