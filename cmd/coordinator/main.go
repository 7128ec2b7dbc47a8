package main

import (
	"simflow/commons/config"
	"simflow/commons/server"
	"simflow/commons/settings"
	internalConfig "simflow/internal/config"
	run_queue "simflow/internal/consumer/run_queue/init"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.WithLogger(config.ProvideFxLogger),
		fx.Provide(
			config.SettingsFor(settings.ServiceCoordinator),
			config.ProvideLogger,
			config.ProvideRouteDependencies,
			config.ProvideAWSConfig,
			config.ProvideSQSClient,
			config.ProvideDynamoDBClient,
			config.ProvideSlackClient,
			config.ProvideRedisCache,
			config.ProvideDiscoveryRegistry,
			internalConfig.ProvideRunRepository,
			internalConfig.ProvideRunGuard,
			internalConfig.ProvideEngineResolver,
			internalConfig.ProvideEngineAdapters,
			internalConfig.ProvideExportGate,
			internalConfig.ProvidePipelineCoordinator,
			internalConfig.ProvideRunService,
			internalConfig.ProvideRunExecutor,
			internalConfig.ProvideRunHandler,
			internalConfig.ProvideCoordinatorHealthHandler,
			internalConfig.ProvideCoordinatorRouteInitializer,
			config.ProvideRouterConfig,
			config.ProvideServerConfig,
			config.ProvideRouter,
			server.NewHTTPServer,
		),
		run_queue.RunQueueModule(),
		fx.Invoke(internalConfig.ManageCoordinatorLifecycle),
	).Run()
}
