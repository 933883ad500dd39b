package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/internal/usecase"
	pkgch "github.com/finbridge/finbridge/pkg/clickhouse"
	"github.com/finbridge/finbridge/pkg/config"
	xhttp "github.com/finbridge/finbridge/pkg/http"
	applogger "github.com/finbridge/finbridge/pkg/logger"
)

// App encapsulates the gateway lifecycle: HTTP serving, the ingestion
// loop and the quote stream, with graceful shutdown in reverse start
// order.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	handler   xhttp.Handler
	ingester  *usecase.Ingester
	collector *usecase.QuoteCollector
	store     repository.FinancialStore
	publisher repository.Publisher
	chClient  *pkgch.Client

	httpServer *xhttp.Server
}

// New creates the app. Ingester, collector, store, publisher and
// chClient are optional; nil collaborators are skipped.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	ingester *usecase.Ingester,
	collector *usecase.QuoteCollector,
	store repository.FinancialStore,
	publisher repository.Publisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		ingester:  ingester,
		collector: collector,
		store:     store,
		publisher: publisher,
		chClient:  chClient,
	}
}

// Run starts all components and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.store != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.store.Init(initCtx); err != nil {
			initCancel()
			return err
		}
		initCancel()
		a.log.Info("financial store ready")
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
	)

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Warn("quote collector start failed", applogger.Error(err))
		} else {
			a.log.Info("quote collector started")
		}
	}

	if a.ingester != nil {
		a.ingester.Start(ctx)
		a.log.Info("ingester started",
			applogger.Duration("interval", a.cfg.Ingestion.Interval),
			applogger.Int("tickers", len(a.cfg.Ingestion.Tickers)))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start failed", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			a.log.Warn("quote collector stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
