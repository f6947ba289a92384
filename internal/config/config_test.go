package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/veldt/trainwatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tempDir := t.TempDir()

	configContent := []byte(`
project = "tinylm-pretrain"
energy_log = "/var/log/impact/run.jsonl"
energy_dir = "/var/log/impact"
snapshot = "/tmp/run.json"
history = "/tmp/run.db"
sink_url = "http://localhost:8086"
sink_org = "research"
sink_bucket = "training"
interval = 5
log_level = "debug"
`)
	configPath := filepath.Join(tempDir, "trainwatch.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	// Set environment variable to point to the test config file
	t.Setenv("TRAINWATCH_CONFIG", configPath)

	// Load the config
	cfg, err := config.Load()
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "tinylm-pretrain", cfg.Project, "Expected Project tinylm-pretrain")
	assert.Equal(t, "/var/log/impact/run.jsonl", cfg.EnergyLog, "Expected EnergyLog /var/log/impact/run.jsonl")
	assert.Equal(t, "/var/log/impact", cfg.EnergyDir, "Expected EnergyDir /var/log/impact")
	assert.Equal(t, "/tmp/run.json", cfg.Snapshot, "Expected Snapshot /tmp/run.json")
	assert.Equal(t, "/tmp/run.db", cfg.History, "Expected History /tmp/run.db")
	assert.Equal(t, "http://localhost:8086", cfg.SinkURL, "Expected SinkURL http://localhost:8086")
	assert.Equal(t, "research", cfg.SinkOrg, "Expected SinkOrg research")
	assert.Equal(t, "training", cfg.SinkBucket, "Expected SinkBucket training")
	assert.Equal(t, 5, cfg.Interval, "Expected Interval 5")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("TRAINWATCH_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	// Assert default values
	assert.Equal(t, config.DefaultProject, cfg.Project, "Expected default Project")
	assert.Equal(t, config.DefaultEnergyLog, cfg.EnergyLog, "Expected default EnergyLog")
	assert.Equal(t, config.DefaultSnapshot, cfg.Snapshot, "Expected default Snapshot")
	assert.Equal(t, config.DefaultInterval, cfg.Interval, "Expected default Interval")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
	assert.False(t, cfg.Monitor, "Expected default Monitor false")
	assert.Empty(t, cfg.History, "Expected History disabled by default")
	assert.Empty(t, cfg.SinkURL, "Expected SinkURL empty by default")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	tempDir := t.TempDir()

	// Create an invalid test config file
	configContent := []byte(`
This is not a valid TOML file
`)
	configPath := filepath.Join(tempDir, "trainwatch.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("TRAINWATCH_CONFIG", configPath)

	_, err = config.Load()
	assert.Error(t, err, "Expected an error for invalid config format")
}

func TestValidate(t *testing.T) {
	valid := config.Config{
		Project:   "test",
		Snapshot:  "out.json",
		EnergyLog: "impact.jsonl",
		Interval:  2,
		LogLevel:  "info",
	}
	require.NoError(t, valid.Validate())

	noProject := valid
	noProject.Project = ""
	assert.Error(t, noProject.Validate(), "Expected error for empty project")

	badInterval := valid
	badInterval.Interval = 0
	assert.Error(t, badInterval.Validate(), "Expected error for non-positive interval")

	badLevel := valid
	badLevel.LogLevel = "loud"
	assert.Error(t, badLevel.Validate(), "Expected error for invalid log level")

	monitorNoLog := valid
	monitorNoLog.Monitor = true
	monitorNoLog.EnergyLog = ""
	assert.Error(t, monitorNoLog.Validate(), "Expected error for monitor mode without energy log")
}
