package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, RoleBooks, cfg.Service.Role)
	assert.Equal(t, "en", cfg.Shard.Local)
	assert.Equal(t, 5, cfg.Client.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Client.Backoff)
	assert.Equal(t, 120*time.Second, cfg.Client.ProxyTimeout)
	assert.Equal(t, 5, cfg.Rules.QuantityDivisor)
	assert.Empty(t, cfg.Rules.ExistingISBNMarker, "sentinel rules are off by default")
	assert.Equal(t, "never", cfg.Fault.Mode)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LANGUAGE", "FR")
	t.Setenv("ALL_LANGUAGES", "en fr de")
	t.Setenv("CLIENT_BACKOFF", "50ms")
	t.Setenv("FAULT_MODE", "random")
	t.Setenv("FAULT_RATES", "store_write=0.5, store_read=0.25")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.Shard.Local)
	assert.Equal(t, []string{"en", "fr", "de"}, cfg.Shard.Known)
	assert.Equal(t, 50*time.Millisecond, cfg.Client.Backoff)
	assert.Equal(t, map[string]float64{"store_write": 0.5, "store_read": 0.25}, cfg.Fault.Rates)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  name: customer-order-service
  role: customers
client:
  dependency_timeout: 3s
rules:
  reserved_username_prefix: rob
  quantity_divisor: 7
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RULE_QUANTITY_DIVISOR", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, RoleCustomers, cfg.Service.Role)
	assert.Equal(t, "customer-order-service", cfg.Service.Name)
	assert.Equal(t, 3*time.Second, cfg.Client.DependencyTimeout)
	assert.Equal(t, "rob", cfg.Rules.ReservedUsernamePrefix)
	assert.Equal(t, 3, cfg.Rules.QuantityDivisor, "environment wins over file")
	// untouched sections keep defaults
	assert.Equal(t, "en", cfg.Shard.Local)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown role":           {"SERVICE_ROLE": "printer"},
		"postgres without url":   {"STORE_BACKEND": "postgres"},
		"local shard not known":  {"LANGUAGE": "it"},
		"fault rate above one":   {"FAULT_RATE": "1.5"},
		"malformed fault rates":  {"FAULT_RATES": "store_write"},
		"unknown logging format": {"LOG_FORMAT": "xml"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}
