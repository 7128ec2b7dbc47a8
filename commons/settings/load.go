package settings

import (
	"simflow/commons/env"

	"github.com/joho/godotenv"
)

// Load builds the settings for service: defaults, then the YAML file named by
// SIMFLOW_CONFIG (config.yaml by default), then .env, then the environment.
func Load(service string) (*Settings, error) {
	s := Default(service)

	if err := ApplyFile(s, env.String("SIMFLOW_CONFIG", "config.yaml")); err != nil {
		return nil, err
	}

	// .env is optional; variables already set in the process win.
	_ = godotenv.Load()

	if err := applyEnv(s); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func applyEnv(s *Settings) error {
	var err error

	s.Service.Port = env.String("PORT", s.Service.Port)
	s.Logging.Mode = env.String("LOG_MODE", s.Logging.Mode)
	s.Engine.BaseURL = env.FirstString(s.Engine.BaseURL, "ENGINE_BASE_URL", "ENERGYPLUS_API_URL")

	if s.Timeouts.Health, err = env.Duration("TIMEOUT_HEALTH", s.Timeouts.Health); err != nil {
		return err
	}
	if s.Timeouts.Weather, err = env.Duration("TIMEOUT_WEATHER", s.Timeouts.Weather); err != nil {
		return err
	}
	if s.Timeouts.Model, err = env.Duration("TIMEOUT_MODEL", s.Timeouts.Model); err != nil {
		return err
	}
	if s.Timeouts.DesignDay, err = env.Duration("TIMEOUT_DESIGN_DAY", s.Timeouts.DesignDay); err != nil {
		return err
	}
	if s.Timeouts.Annual, err = env.Duration("TIMEOUT_ANNUAL", s.Timeouts.Annual); err != nil {
		return err
	}
	if s.Timeouts.Export, err = env.Duration("TIMEOUT_EXPORT", s.Timeouts.Export); err != nil {
		return err
	}

	s.Export.GDriveFolder = env.String("EXPORT_GDRIVE_FOLDER", s.Export.GDriveFolder)

	s.AWS.Region = env.String("AWS_REGION", s.AWS.Region)
	s.AWS.Endpoint = env.String("AWS_ENDPOINT_URL", s.AWS.Endpoint)

	if s.Queue.Enabled, err = env.Bool("RUN_QUEUE_ENABLED", s.Queue.Enabled); err != nil {
		return err
	}
	s.Queue.URL = env.String("RUN_QUEUE_URL", s.Queue.URL)
	if s.Queue.Workers, err = env.Int("RUN_QUEUE_WORKERS", s.Queue.Workers); err != nil {
		return err
	}

	s.Ledger.Backend = env.String("LEDGER_BACKEND", s.Ledger.Backend)
	s.Ledger.Table = env.String("LEDGER_TABLE", s.Ledger.Table)
	s.Ledger.DatabaseURL = env.String("DATABASE_URL", s.Ledger.DatabaseURL)

	if s.Redis.Enabled, err = env.Bool("REDIS_ENABLED", s.Redis.Enabled); err != nil {
		return err
	}
	s.Redis.Addr = env.String("REDIS_ADDR", s.Redis.Addr)
	s.Redis.Password = env.String("REDIS_PASSWORD", s.Redis.Password)

	s.ZooKeeper.Servers = env.List("ZK_SERVERS", s.ZooKeeper.Servers)
	s.ZooKeeper.EndpointPath = env.String("ZK_ENDPOINT_PATH", s.ZooKeeper.EndpointPath)
	s.ZooKeeper.PublicURL = env.String("ENGINE_PUBLIC_URL", s.ZooKeeper.PublicURL)

	s.Notify.SlackWebhookURL = env.String("SLACK_WEBHOOK_URL", s.Notify.SlackWebhookURL)
	s.Notify.Channel = env.String("SLACK_CHANNEL", s.Notify.Channel)

	s.EnergyPlus.InstallPath = env.String("EPLUS_INSTALL_PATH", s.EnergyPlus.InstallPath)
	s.EnergyPlus.Executable = env.String("EPLUS_EXECUTABLE", s.EnergyPlus.Executable)
	s.EnergyPlus.IDDPath = env.String("EPLUS_IDD_PATH", s.EnergyPlus.IDDPath)
	s.EnergyPlus.OutputDir = env.String("MCP_OUTPUT_DIR", s.EnergyPlus.OutputDir)
	s.EnergyPlus.TemplatesDir = env.String("TEMPLATES_DIR", s.EnergyPlus.TemplatesDir)

	s.Weather.PVGISBaseURL = env.String("PVGIS_BASE_URL", s.Weather.PVGISBaseURL)

	s.Supabase.URL = env.String("SUPABASE_URL", s.Supabase.URL)
	s.Supabase.Key = env.String("SUPABASE_KEY", s.Supabase.Key)
	s.Supabase.Bucket = env.String("SUPABASE_BUCKET", s.Supabase.Bucket)

	s.GDrive.CredentialsPath = env.String("GOOGLE_DRIVE_CREDENTIALS", s.GDrive.CredentialsPath)

	s.ObjectStore.Endpoint = env.String("OBJECTSTORE_ENDPOINT", s.ObjectStore.Endpoint)
	s.ObjectStore.AccessKey = env.String("OBJECTSTORE_ACCESS_KEY", s.ObjectStore.AccessKey)
	s.ObjectStore.SecretKey = env.String("OBJECTSTORE_SECRET_KEY", s.ObjectStore.SecretKey)
	s.ObjectStore.Bucket = env.String("OBJECTSTORE_BUCKET", s.ObjectStore.Bucket)
	if s.ObjectStore.UseSSL, err = env.Bool("OBJECTSTORE_USE_SSL", s.ObjectStore.UseSSL); err != nil {
		return err
	}

	s.Retention.Schedule = env.String("RETENTION_SCHEDULE", s.Retention.Schedule)
	if s.Retention.MaxAge, err = env.Duration("RETENTION_MAX_AGE", s.Retention.MaxAge); err != nil {
		return err
	}

	return nil
}
