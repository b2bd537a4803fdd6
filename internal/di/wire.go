//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"LoadCast/pkg/config"
	"LoadCast/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideKafkaProducer,
	ProvideRedisClient,
	ProvideCache,
)

var domainSet = wire.NewSet(
	ProvideSeriesStore,
	ProvideResultStore,
	ProvidePublisher,
	ProvideCapabilities,
	ProvideHolidayCalendar,
	ProvideHolidayProvider,
	ProvideForecasterFactories,
	ProvideModelRegistry,
	ProvideForecastPipeline,
	ProvideAlertHub,
	ProvideAlertPipeline,
	ProvideAnomalyScanner,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		domainSet,

		// Transports
		ProvideJobQueue,
		ProvideKafkaConsumer,
		ProvideKafkaJobsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeCore wires the use cases without transports for one-shot commands.
func InitializeCore(cfg *config.Config) (*Core, func(), error) {
	wire.Build(infraSet, domainSet, ProvideCore)
	return nil, nil, nil
}
