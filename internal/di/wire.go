//go:build wireinject
// +build wireinject

package di

import (
	"github.com/finbridge/finbridge/pkg/config"
	"github.com/finbridge/finbridge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Providers and routing
		ProvideRegistry,
		ProvideComposite,

		// Infrastructure
		ProvideCache,
		ProvideClickHouseClient,
		ProvideFinancialStore,
		ProvidePublisher,

		// Background work
		ProvideIngester,
		ProvideQuoteCollector,

		// HTTP
		ProvideHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
