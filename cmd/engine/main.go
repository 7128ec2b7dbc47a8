package main

import (
	"simflow/commons/config"
	"simflow/commons/server"
	"simflow/commons/settings"
	internalConfig "simflow/internal/config"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.WithLogger(config.ProvideFxLogger),
		fx.Provide(
			config.SettingsFor(settings.ServiceEngine),
			config.ProvideLogger,
			config.ProvideRouteDependencies,
			config.ProvideDiscoveryRegistry,
			internalConfig.ProvideWeatherClient,
			internalConfig.ProvideTemplateGenerator,
			internalConfig.ProvideSimulationRunner,
			internalConfig.ProvideSandbox,
			internalConfig.ProvideExporter,
			internalConfig.ProvideRetentionSweeper,
			internalConfig.ProvideEngineHandlers,
			internalConfig.ProvideEngineRouteInitializer,
			config.ProvideRouterConfig,
			config.ProvideServerConfig,
			config.ProvideRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(internalConfig.ManageEngineLifecycle),
	).Run()
}
