package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"simflow/commons/routes"
	"simflow/commons/server"
	"simflow/commons/settings"
	discovery "simflow/internal/discovery/iface"
	"simflow/internal/export"
	"simflow/internal/files"
	"simflow/internal/geometry"
	"simflow/internal/handler"
	"simflow/internal/logger"
	internalRoutes "simflow/internal/routes"
	"simflow/internal/service"
	"simflow/internal/simulation"
	"simflow/internal/template"
	"simflow/internal/weather"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func ProvideWeatherClient(s *settings.Settings, log logger.Logger) *weather.Client {
	return weather.NewClient(weather.Config{
		BaseURL:    s.Weather.PVGISBaseURL,
		OutputDir:  filepath.Join(s.EnergyPlus.OutputDir, "weather_files"),
		Timeout:    s.Weather.Timeout,
		UseHorizon: s.Weather.UseHorizon,
	}, &http.Client{}, log)
}

func ProvideTemplateGenerator(s *settings.Settings, log logger.Logger) (*template.Generator, error) {
	catalog, err := template.LoadCatalog(s.EnergyPlus.TemplatesDir, log)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return template.NewGenerator(catalog, filepath.Join(s.EnergyPlus.OutputDir, "models"), log), nil
}

func ProvideSimulationRunner(s *settings.Settings, log logger.Logger) *simulation.Runner {
	return simulation.NewRunner(simulation.RunnerConfig{
		Executable:       s.EnergyPlus.ExecutablePath(),
		IDDPath:          s.EnergyPlus.IDDPath,
		OutputDir:        s.EnergyPlus.OutputDir,
		DesignDayTimeout: s.Timeouts.DesignDay,
		AnnualTimeout:    s.Timeouts.Annual,
	}, log)
}

func ProvideSandbox(s *settings.Settings) (*files.Sandbox, error) {
	if err := os.MkdirAll(s.EnergyPlus.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create outputs directory: %w", err)
	}
	return files.NewSandbox(s.EnergyPlus.OutputDir)
}

// ProvideExporter registers every destination whose credentials are present.
// Requests naming any other known destination fail as not configured.
func ProvideExporter(s *settings.Settings, log logger.Logger) (*export.Exporter, error) {
	var destinations []export.Destination

	supabaseCfg := export.SupabaseConfig{
		URL:    s.Supabase.URL,
		Key:    s.Supabase.Key,
		Bucket: s.Supabase.Bucket,
	}
	if supabaseCfg.Configured() {
		destinations = append(destinations, export.NewSupabase(supabaseCfg, &http.Client{}, log))
	}

	if s.GDrive.CredentialsPath != "" {
		drive, err := export.NewGDrive(context.Background(), export.GDriveConfig{
			CredentialsPath: s.GDrive.CredentialsPath,
			DefaultFolder:   s.Export.GDriveFolder,
		}, log)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, drive)
	}

	storeCfg := export.ObjectStoreConfig{
		Endpoint:  s.ObjectStore.Endpoint,
		AccessKey: s.ObjectStore.AccessKey,
		SecretKey: s.ObjectStore.SecretKey,
		Bucket:    s.ObjectStore.Bucket,
		Region:    s.ObjectStore.Region,
		UseSSL:    s.ObjectStore.UseSSL,
		Prefix:    s.Export.FolderPrefix,
	}
	if storeCfg.Configured() {
		store, err := export.NewObjectStore(storeCfg, log)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, store)
	}

	return export.NewExporter(log, destinations...), nil
}

func ProvideRetentionSweeper(s *settings.Settings, log logger.Logger) service.RetentionSweeper {
	return service.NewRetentionSweeper(s.EnergyPlus.OutputDir, s.Retention.Schedule, s.Retention.MaxAge, log)
}

// ProvideEngineHandlers builds the handlers behind every engine endpoint.
func ProvideEngineHandlers(
	s *settings.Settings,
	weatherClient *weather.Client,
	generator *template.Generator,
	runner *simulation.Runner,
	sandbox *files.Sandbox,
	exporter *export.Exporter,
	log logger.Logger,
) internalRoutes.EngineHandlers {
	return internalRoutes.EngineHandlers{
		Engine:     handler.NewEngineHandler(log, s.Service.Version, s.EnergyPlus.Version),
		Weather:    handler.NewWeatherHandler(log, weatherClient),
		Model:      handler.NewModelHandler(log, generator),
		Simulation: handler.NewSimulationHandler(log, runner, s.EnergyPlus.Version),
		Files:      handler.NewFilesHandler(log, sandbox),
		Export:     handler.NewExportHandler(log, exporter, sandbox),
		Geometry:   handler.NewGeometryHandler(log, geometry.NewExporter(log), sandbox),
	}
}

// ProvideEngineRouteInitializer creates route initializer for the engine
func ProvideEngineRouteInitializer(h internalRoutes.EngineHandlers) func(*gin.Engine, routes.RouteDependencies) {
	return func(router *gin.Engine, deps routes.RouteDependencies) {
		internalRoutes.InitEngineRoutes(router, h, deps.Logger)
	}
}

type EngineLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Server    *server.HTTPServer
	Sweeper   service.RetentionSweeper
	Settings  *settings.Settings
	Logger    logger.Logger
	Registry  discovery.Registry `optional:"true"`
}

// ManageEngineLifecycle starts the retention sweep and, when ZooKeeper is
// configured, publishes the engine's public URL for coordinators.
func ManageEngineLifecycle(p EngineLifecycleParams) {
	_ = p.Server

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting retention sweeper")
			return p.Sweeper.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping retention sweeper")
			return p.Sweeper.Stop(ctx)
		},
	})

	zkCfg := p.Settings.ZooKeeper
	if p.Registry == nil || zkCfg.PublicURL == "" {
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Registry.Publish(zkCfg.EndpointPath, []byte(zkCfg.PublicURL)); err != nil {
				return fmt.Errorf("publish engine endpoint: %w", err)
			}
			p.Logger.Info("published engine endpoint",
				logger.String("path", zkCfg.EndpointPath),
				logger.String("base_url", zkCfg.PublicURL),
			)
			return nil
		},
	})
}
