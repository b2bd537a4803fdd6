package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LoadCast/internal/middleware"
	"LoadCast/internal/service/alertstream"
	"LoadCast/internal/usecase"
	"LoadCast/pkg/config"
	xhttp "LoadCast/pkg/http"
	pkgkafka "LoadCast/pkg/kafka"
	applogger "LoadCast/pkg/logger"
	"LoadCast/pkg/queue"
)

// Components are the long-running parts of the service. Nil members are
// skipped. Infrastructure clients are closed by the cleanup returned from DI.
type Components struct {
	HTTP     *xhttp.Server
	Consumer *pkgkafka.Consumer
	Jobs     pkgkafka.MessageHandler
	Queue    *queue.RedisQueue
	Alerts   *middleware.AlertPipeline
	Scanner  *usecase.AnomalyScanner
	Hub      *alertstream.Hub
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, c: c}
}

// Run starts every component and blocks until ctx is cancelled or the process
// receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.c.Alerts != nil {
		a.c.Alerts.Start(ctx)
	}

	// the queue is optional: HTTP stays up and enqueue answers ERR_QUEUE
	if a.c.Queue != nil {
		if err := a.c.Queue.Start(); err != nil {
			a.log.Error("redis queue start failed", applogger.Error(err))
		}
	}

	if a.c.Consumer != nil && a.c.Jobs != nil {
		a.c.Consumer.RegisterHandler(a.c.Jobs)
		if err := a.c.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.c.Jobs.Topic()))
		}
	}

	if a.c.Scanner != nil && a.cfg.Anomaly.ScanInterval > 0 {
		go a.c.Scanner.Watch(ctx, a.cfg.Anomaly.ScanInterval, a.cfg.Anomaly.ScanDays)
		a.log.Info("real-time alert watch started", applogger.Duration("interval", a.cfg.Anomaly.ScanInterval))
	}

	if a.c.HTTP == nil {
		return errors.New("http server not configured")
	}
	if err := a.c.HTTP.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services within the configured budget.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.c.HTTP != nil {
		if err := a.c.HTTP.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(ctx); err != nil {
			a.log.Warn("redis queue stop error", applogger.Error(err))
		}
	}
	if a.c.Alerts != nil {
		a.c.Alerts.Stop()
		if n := a.c.Alerts.Pending(); n > 0 {
			a.log.Warn("alerts left undelivered", applogger.Int("pending", n))
		}
	}
	if a.c.Hub != nil {
		_ = a.c.Hub.Close()
	}
	a.log.Info("shutdown complete")
	a.log.RemoveCollector()
	return errors.Join(errs...)
}
