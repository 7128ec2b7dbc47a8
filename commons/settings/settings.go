package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ServiceCoordinator = "coordinator"
	ServiceEngine      = "engine"

	LedgerMemory   = "memory"
	LedgerDynamoDB = "dynamodb"
	LedgerPostgres = "postgres"
)

// Settings is the full runtime configuration of either service. It is loaded
// once at startup and injected; nothing reads the environment afterwards.
type Settings struct {
	Service     ServiceSettings     `yaml:"service"`
	Logging     LoggingSettings     `yaml:"logging"`
	Engine      EngineSettings      `yaml:"engine"`
	Timeouts    TimeoutSettings     `yaml:"timeouts"`
	Export      ExportSettings      `yaml:"export"`
	AWS         AWSSettings         `yaml:"aws"`
	Queue       QueueSettings       `yaml:"queue"`
	Ledger      LedgerSettings      `yaml:"ledger"`
	Redis       RedisSettings       `yaml:"redis"`
	ZooKeeper   ZooKeeperSettings   `yaml:"zookeeper"`
	Notify      NotifySettings      `yaml:"notify"`
	EnergyPlus  EnergyPlusSettings  `yaml:"energyplus"`
	Weather     WeatherSettings     `yaml:"weather"`
	Supabase    SupabaseSettings    `yaml:"supabase"`
	GDrive      GDriveSettings      `yaml:"gdrive"`
	ObjectStore ObjectStoreSettings `yaml:"objectstore"`
	Retention   RetentionSettings   `yaml:"retention"`
}

type ServiceSettings struct {
	Name    string `yaml:"name"`
	Port    string `yaml:"port"`
	Version string `yaml:"version"`
}

type LoggingSettings struct {
	// Mode is "development" or "production".
	Mode string `yaml:"mode"`
}

type EngineSettings struct {
	BaseURL string `yaml:"base_url"`
}

type TimeoutSettings struct {
	Health    time.Duration `yaml:"health"`
	Weather   time.Duration `yaml:"weather"`
	Model     time.Duration `yaml:"model"`
	DesignDay time.Duration `yaml:"design_day"`
	Annual    time.Duration `yaml:"annual"`
	Results   time.Duration `yaml:"results"`
	Export    time.Duration `yaml:"export"`
	// Grace is added on top of the simulation timeout forwarded to the engine
	// so its own timeout report arrives before the coordinator gives up.
	Grace time.Duration `yaml:"grace"`
}

type ExportSettings struct {
	GDriveFolder string `yaml:"gdrive_folder"`
	FolderPrefix string `yaml:"folder_prefix"`
}

type AWSSettings struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type QueueSettings struct {
	Enabled           bool   `yaml:"enabled"`
	URL               string `yaml:"url"`
	Workers           int    `yaml:"workers"`
	WaitTimeSeconds   int32  `yaml:"wait_time_seconds"`
	VisibilityTimeout int32  `yaml:"visibility_timeout_seconds"`
}

type LedgerSettings struct {
	Backend      string        `yaml:"backend"`
	Table        string        `yaml:"table"`
	DatabaseURL  string        `yaml:"database_url"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type RedisSettings struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	GuardTTL  time.Duration `yaml:"guard_ttl"`
}

type ZooKeeperSettings struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	EndpointPath   string        `yaml:"endpoint_path"`
	// PublicURL is what the engine publishes under EndpointPath.
	PublicURL string `yaml:"public_url"`
}

type NotifySettings struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	Channel         string `yaml:"channel"`
}

type EnergyPlusSettings struct {
	InstallPath  string `yaml:"install_path"`
	Executable   string `yaml:"executable"`
	IDDPath      string `yaml:"idd_path"`
	Version      string `yaml:"version"`
	OutputDir    string `yaml:"output_dir"`
	TemplatesDir string `yaml:"templates_dir"`
}

type WeatherSettings struct {
	PVGISBaseURL string        `yaml:"pvgis_base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	UseHorizon   bool          `yaml:"use_horizon"`
}

type SupabaseSettings struct {
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
	Bucket string `yaml:"bucket"`
}

type GDriveSettings struct {
	CredentialsPath string `yaml:"credentials_path"`
}

type ObjectStoreSettings struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type RetentionSettings struct {
	// Schedule is a six-field cron spec (seconds first).
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// Default returns the built-in configuration for the named service.
func Default(service string) *Settings {
	port := "8090"
	if service == ServiceEngine {
		port = "8000"
	}

	return &Settings{
		Service: ServiceSettings{
			Name:    service,
			Port:    port,
			Version: "0.1.0",
		},
		Logging: LoggingSettings{Mode: "development"},
		Engine:  EngineSettings{BaseURL: "http://localhost:8000"},
		Timeouts: TimeoutSettings{
			Health:    10 * time.Second,
			Weather:   60 * time.Second,
			Model:     30 * time.Second,
			DesignDay: 120 * time.Second,
			Annual:    300 * time.Second,
			Results:   30 * time.Second,
			Export:    120 * time.Second,
			Grace:     5 * time.Second,
		},
		AWS: AWSSettings{Region: "us-east-1"},
		Queue: QueueSettings{
			Workers:           2,
			WaitTimeSeconds:   20,
			VisibilityTimeout: 900,
		},
		Ledger: LedgerSettings{
			Backend:      LedgerMemory,
			Table:        "simulation_runs",
			PingTimeout:  2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Redis: RedisSettings{
			Addr:     "localhost:6379",
			GuardTTL: 30 * time.Minute,
		},
		ZooKeeper: ZooKeeperSettings{
			SessionTimeout: 30 * time.Second,
			EndpointPath:   "/simflow/engine/base_url",
		},
		Notify: NotifySettings{Channel: "#simulations"},
		EnergyPlus: EnergyPlusSettings{
			Version:      "25.2.0",
			OutputDir:    "outputs",
			TemplatesDir: "templates",
		},
		Weather: WeatherSettings{
			PVGISBaseURL: "https://re.jrc.ec.europa.eu/api/v5_3",
			Timeout:      60 * time.Second,
			UseHorizon:   true,
		},
		ObjectStore: ObjectStoreSettings{Region: "us-east-1"},
		Retention: RetentionSettings{
			Schedule: "0 0 3 * * *",
			MaxAge:   7 * 24 * time.Hour,
		},
	}
}

// ApplyFile overlays a YAML file onto s. A missing file is not an error.
func ApplyFile(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read settings file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return nil
}

// ExecutablePath resolves the EnergyPlus binary.
func (e EnergyPlusSettings) ExecutablePath() string {
	if e.Executable != "" {
		return e.Executable
	}
	if e.InstallPath != "" {
		return filepath.Join(e.InstallPath, "energyplus")
	}
	return "energyplus"
}

func (s *Settings) Validate() error {
	if s.Service.Name == "" {
		return errors.New("service.name is required")
	}
	if s.Service.Port == "" {
		return errors.New("service.port is required")
	}

	t := s.Timeouts
	for name, d := range map[string]time.Duration{
		"health": t.Health, "weather": t.Weather, "model": t.Model,
		"design_day": t.DesignDay, "annual": t.Annual, "results": t.Results, "export": t.Export,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", name)
		}
	}
	if t.Grace < 0 {
		return errors.New("timeouts.grace must be >= 0")
	}

	switch s.Ledger.Backend {
	case LedgerMemory, LedgerDynamoDB:
	case LedgerPostgres:
		if s.Ledger.DatabaseURL == "" {
			return errors.New("ledger.database_url is required for the postgres backend")
		}
		if s.Ledger.MaxIdleConns > s.Ledger.MaxOpenConns {
			return errors.New("ledger.max_idle_conns must be <= ledger.max_open_conns")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", s.Ledger.Backend)
	}

	if s.Queue.Enabled {
		if s.Queue.URL == "" {
			return errors.New("queue.url is required when the queue is enabled")
		}
		if s.Queue.Workers < 1 {
			return errors.New("queue.workers must be >= 1")
		}
	}

	if s.Redis.Enabled && s.Redis.GuardTTL <= 0 {
		return errors.New("redis.guard_ttl must be positive")
	}

	if s.Service.Name == ServiceCoordinator && s.Engine.BaseURL == "" && len(s.ZooKeeper.Servers) == 0 {
		return errors.New("engine.base_url or zookeeper.servers is required")
	}

	return nil
}
