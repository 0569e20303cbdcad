//go:build wireinject
// +build wireinject

package di

import (
	"FeatPull/pkg/config"
	"FeatPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup closes infrastructure clients in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideHTTPClient,

		// Upstream providers
		ProvideEquitySource,
		ProvideMacroSource,
		ProvideCryptoSource,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideLocker,
		ProvideSinks,

		// Use cases
		ProvideFeatureAssembler,
		ProvideBitcoinHistory,
		ProvideDatasetExporter,

		ProvideDatasetsHandler,
		ProvideApp,
	)
	return nil, nil, nil
}
