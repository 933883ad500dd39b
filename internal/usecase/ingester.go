package usecase

import (
	"context"
	"time"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/pkg/logger"
)

// Ingester periodically pulls the latest metrics for a watchlist and
// fans them out to the publisher and the store. Retry across cycles is
// the only retry; within one cycle a failing ticker is skipped.
type Ingester struct {
	source   repository.FinancialProvider
	store    repository.FinancialStore
	pub      repository.Publisher
	metrics  repository.Metrics
	log      *logger.Logger
	interval time.Duration
	tickers  []string
	concepts []string
}

// NewIngester creates an ingester over the given source. Store and
// publisher are optional; a nil collaborator is skipped.
func NewIngester(
	source repository.FinancialProvider,
	store repository.FinancialStore,
	pub repository.Publisher,
	metrics repository.Metrics,
	log *logger.Logger,
	interval time.Duration,
	tickers []string,
	concepts []string,
) *Ingester {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Ingester{
		source:   source,
		store:    store,
		pub:      pub,
		metrics:  metrics,
		log:      log,
		interval: interval,
		tickers:  tickers,
		concepts: concepts,
	}
}

// Start runs one immediate cycle and then ticks until ctx is
// cancelled.
func (i *Ingester) Start(ctx context.Context) {
	go func() {
		i.runCycle(ctx)
		ticker := time.NewTicker(i.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				i.runCycle(ctx)
			}
		}
	}()
}

func (i *Ingester) runCycle(ctx context.Context) {
	for _, t := range i.tickers {
		if ctx.Err() != nil {
			return
		}
		if err := i.ingestOne(ctx, t); err != nil {
			i.metrics.RecordError("ingest")
			i.log.Warn("ingest failed",
				logger.String("ticker", t),
				logger.Error(err))
		}
	}
}

func (i *Ingester) ingestOne(ctx context.Context, ticker string) error {
	data, err := i.source.GetLatestMetrics(ctx, ticker, i.concepts)
	if err != nil {
		return err
	}
	if len(data.Metrics) == 0 {
		i.log.Debug("no metrics for ticker", logger.String("ticker", ticker))
		return nil
	}

	if i.pub != nil {
		if err := i.pub.PublishFinancialData(ctx, data); err != nil {
			i.metrics.RecordError("publish")
			i.log.Warn("publish failed",
				logger.String("ticker", ticker),
				logger.Error(err))
		}
	}
	if i.store != nil {
		if err := i.store.StoreFinancialData(ctx, data); err != nil {
			i.metrics.RecordError("store")
			i.log.Warn("store failed",
				logger.String("ticker", ticker),
				logger.Error(err))
		}
	}

	i.log.Info("ingested",
		logger.String("ticker", ticker),
		logger.String("source", data.Source),
		logger.Int("metrics", len(data.Metrics)))
	return nil
}

// QuoteCollector consumes a live quote stream and keeps the last-price
// gauges warm.
type QuoteCollector struct {
	stream  repository.QuoteStream
	metrics repository.Metrics
	log     *logger.Logger
}

// NewQuoteCollector creates a collector over the given stream.
func NewQuoteCollector(stream repository.QuoteStream, metrics repository.Metrics, log *logger.Logger) *QuoteCollector {
	return &QuoteCollector{stream: stream, metrics: metrics, log: log}
}

// IsConnected reports stream status.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes until ctx is cancelled.
func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	quotes, errs := c.stream.Read(ctx)
	go c.consume(ctx, quotes, errs)
	return nil
}

func (c *QuoteCollector) consume(ctx context.Context, quotes <-chan *models.Quote, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			if err != nil {
				c.metrics.RecordError("stream")
				c.log.Warn("quote stream error", logger.Error(err))
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					c.log.Error("quote stream reconnect failed", logger.Error(rerr))
					return
				}
				quotes, errs = c.stream.Read(ctx)
			}
		case q := <-quotes:
			if q == nil {
				continue
			}
			c.metrics.RecordLastPrice(q.Ticker, q.Price)
		}
	}
}

// Stop closes the stream.
func (c *QuoteCollector) Stop() error {
	return c.stream.Close()
}
