package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONOutput(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Service: "books-service", Out: &buf})
	reqLogger := ForRequest(logger, "req-1")
	reqLogger.Info().Msg("hello")
	logger.Debug().Msg("filtered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "books-service", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNewLogger_DefaultService(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	reqLogger := ForRequest(NewLogger(LogConfig{Out: &buf}), "")
	reqLogger.Info().Msg("hi")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bookshop", entry["service"])
	assert.NotContains(t, entry, "request_id")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, LevelFor("WARNING"))
	assert.Equal(t, zerolog.DebugLevel, LevelFor(" debug "))
	assert.Equal(t, zerolog.InfoLevel, LevelFor("nonsense"))
}

func TestNewMetricsWithRegistry_Isolated(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.FaultsInjectedTotal.WithLabelValues("store_write").Inc()
	m.FaultsInjectedTotal.WithLabelValues("store_write").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FaultsInjectedTotal.WithLabelValues("store_write")))

	// a second registry accepts the same metric names
	assert.NotPanics(t, func() { NewMetricsWithRegistry(prometheus.NewRegistry()) })
}
