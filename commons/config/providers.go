package config

import (
	"context"

	"simflow/commons/routes"
	"simflow/commons/server"
	"simflow/commons/settings"
	cache "simflow/internal/cache/iface"
	redisCache "simflow/internal/cache/redis"
	discovery "simflow/internal/discovery/iface"
	zkDiscovery "simflow/internal/discovery/zk"
	"simflow/internal/logger"
	"simflow/internal/slack"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// SettingsFor returns a provider loading the settings of the named service.
func SettingsFor(service string) func() (*settings.Settings, error) {
	return func() (*settings.Settings, error) {
		return settings.Load(service)
	}
}

// ProvideLogger creates the zap logger selected by logging.mode
func ProvideLogger(s *settings.Settings) (logger.Logger, error) {
	if s.Logging.Mode == "production" {
		return logger.NewZapLogger()
	}
	return logger.NewZapLoggerForDev()
}

// ProvideFxLogger creates the FX event logger using the application logger
func ProvideFxLogger(log logger.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{
		Logger: log.(*logger.ZapLogger).Logger(),
	}
}

// ProvideRouteDependencies creates route dependencies
func ProvideRouteDependencies(log logger.Logger) routes.RouteDependencies {
	return routes.RouteDependencies{
		Logger: log,
	}
}

func ProvideRouterConfig(s *settings.Settings) routes.RouterConfig {
	return routes.RouterConfig{
		ServiceName: s.Service.Name,
		Version:     s.Service.Version,
		DebugMode:   s.Logging.Mode != "production",
	}
}

func ProvideServerConfig(s *settings.Settings) server.ServerConfig {
	return server.ServerConfig{
		Port: s.Service.Port,
	}
}

// ProvideRouter creates and configures the Gin router with all routes
func ProvideRouter(
	config routes.RouterConfig,
	deps routes.RouteDependencies,
	routeInitializer func(*gin.Engine, routes.RouteDependencies),
) *gin.Engine {
	router := routes.NewRouter(config, deps)
	routeInitializer(router, deps)
	return router
}

// ProvideAWSConfig loads the default credential chain. aws.endpoint points
// every client at LocalStack or another emulator.
func ProvideAWSConfig(s *settings.Settings) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s.AWS.Region),
	}
	if s.AWS.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(s.AWS.Endpoint))
	}
	return awsconfig.LoadDefaultConfig(context.Background(), opts...)
}

// ProvideSQSClient returns nil when async runs are disabled.
func ProvideSQSClient(s *settings.Settings, cfg aws.Config) *sqs.Client {
	if !s.Queue.Enabled {
		return nil
	}
	return sqs.NewFromConfig(cfg)
}

// ProvideDynamoDBClient returns nil unless the ledger lives in DynamoDB.
func ProvideDynamoDBClient(s *settings.Settings, cfg aws.Config) *awsdynamodb.Client {
	if s.Ledger.Backend != settings.LedgerDynamoDB {
		return nil
	}
	return awsdynamodb.NewFromConfig(cfg)
}

// ProvideSlackClient posts to the webhook when one is configured and logs
// otherwise.
func ProvideSlackClient(s *settings.Settings, log logger.Logger) slack.Client {
	if s.Notify.SlackWebhookURL == "" {
		return slack.NewLogClient(log)
	}
	return slack.NewWebhookClient(s.Notify.SlackWebhookURL, log)
}

// ProvideRedisCache returns nil when redis is disabled.
func ProvideRedisCache(lc fx.Lifecycle, s *settings.Settings, log logger.Logger) (cache.Cache, error) {
	if !s.Redis.Enabled {
		return nil, nil
	}

	c, err := redisCache.NewRedisCache(redisCache.Config{
		Addr:      s.Redis.Addr,
		Password:  s.Redis.Password,
		DB:        s.Redis.DB,
		KeyPrefix: s.Redis.KeyPrefix,
	}, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c, nil
}

// ProvideDiscoveryRegistry connects to ZooKeeper. It returns nil when no
// servers are configured.
func ProvideDiscoveryRegistry(lc fx.Lifecycle, s *settings.Settings, log logger.Logger) (discovery.Registry, error) {
	if len(s.ZooKeeper.Servers) == 0 {
		return nil, nil
	}

	registry, err := zkDiscovery.NewZKRegistry(s.ZooKeeper.Servers, s.ZooKeeper.SessionTimeout, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return registry.Close()
		},
	})
	return registry, nil
}
