package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := Default(ServiceCoordinator)
	require.NoError(t, s.Validate())

	assert.Equal(t, "8090", s.Service.Port)
	assert.Equal(t, 10*time.Second, s.Timeouts.Health)
	assert.Equal(t, 60*time.Second, s.Timeouts.Weather)
	assert.Equal(t, 30*time.Second, s.Timeouts.Model)
	assert.Equal(t, 120*time.Second, s.Timeouts.DesignDay)
	assert.Equal(t, 300*time.Second, s.Timeouts.Annual)
	assert.Equal(t, LedgerMemory, s.Ledger.Backend)

	engine := Default(ServiceEngine)
	assert.Equal(t, "8000", engine.Service.Port)
	assert.Equal(t, "25.2.0", engine.EnergyPlus.Version)
}

func TestApplyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
engine:
  base_url: http://engine.internal:8000
timeouts:
  annual: 10m
ledger:
  backend: dynamodb
  table: runs_test
zookeeper:
  servers: [zk1:2181, zk2:2181]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := Default(ServiceCoordinator)
	require.NoError(t, ApplyFile(s, path))

	assert.Equal(t, "http://engine.internal:8000", s.Engine.BaseURL)
	assert.Equal(t, 10*time.Minute, s.Timeouts.Annual)
	// untouched keys keep their defaults
	assert.Equal(t, 120*time.Second, s.Timeouts.DesignDay)
	assert.Equal(t, LedgerDynamoDB, s.Ledger.Backend)
	assert.Equal(t, "runs_test", s.Ledger.Table)
	assert.Equal(t, []string{"zk1:2181", "zk2:2181"}, s.ZooKeeper.Servers)

	t.Run("missing file is ignored", func(t *testing.T) {
		require.NoError(t, ApplyFile(Default(ServiceEngine), filepath.Join(dir, "nope.yaml")))
	})

	t.Run("malformed file fails", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("timeouts: [1, 2"), 0o644))
		assert.Error(t, ApplyFile(Default(ServiceEngine), bad))
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIMFLOW_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("ENGINE_BASE_URL", "http://10.0.0.5:8000")
	t.Setenv("TIMEOUT_DESIGN_DAY", "45s")
	t.Setenv("SUPABASE_BUCKET", "simulations")
	t.Setenv("EPLUS_INSTALL_PATH", "/opt/EnergyPlus")
	t.Setenv("ZK_SERVERS", "zk:2181")

	s, err := Load(ServiceCoordinator)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8000", s.Engine.BaseURL)
	assert.Equal(t, 45*time.Second, s.Timeouts.DesignDay)
	assert.Equal(t, "simulations", s.Supabase.Bucket)
	assert.Equal(t, filepath.Join("/opt/EnergyPlus", "energyplus"), s.EnergyPlus.ExecutablePath())
	assert.Equal(t, []string{"zk:2181"}, s.ZooKeeper.Servers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		errMsg string
	}{
		{"zero timeout", func(s *Settings) { s.Timeouts.Weather = 0 }, "timeouts.weather"},
		{"unknown ledger", func(s *Settings) { s.Ledger.Backend = "sqlite" }, "unknown ledger backend"},
		{"postgres without url", func(s *Settings) { s.Ledger.Backend = LedgerPostgres }, "database_url"},
		{"queue without url", func(s *Settings) { s.Queue.Enabled = true }, "queue.url"},
		{"no engine endpoint", func(s *Settings) { s.Engine.BaseURL = "" }, "engine.base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default(ServiceCoordinator)
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
