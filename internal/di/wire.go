//go:build wireinject
// +build wireinject

package di

import (
	"CoinPull/pkg/config"
	"CoinPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure
		ProvidePriceStore,
		ProvidePublisher,
		ProvideCache,
		ProvideFetcher,
		ProvideDashboard,

		// Use cases
		ProvideIngestion,
		ProvideSeedRunner,
		ProvideLivePoller,

		// HTTP
		ProvideHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
