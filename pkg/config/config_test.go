package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
pairs:
  - symbol_a: KO
    symbol_b: PEP
`

func TestParseFillsDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, SourceNone, c.Source)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 15*time.Second, c.Server.ShutdownTimeout)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, "1s", c.Aligner.Timeframe)
	assert.Equal(t, 100, c.Estimator.Lookback)
	assert.Equal(t, 0.5, c.Estimator.ExitZ)
	assert.Equal(t, "info", c.Log.Level)

	require.Len(t, c.Pairs, 1)
	assert.Equal(t, "KO/PEP", c.Pairs[0].Name)
	assert.Equal(t, 10000.0, c.Pairs[0].Capital)
	assert.Equal(t, []string{"KO", "PEP"}, c.Symbols())
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	c, err := Parse([]byte(minimal + "metrics:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, c.Metrics.Enabled)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"no pairs":         "environment: test\n",
		"same legs":        "pairs:\n  - symbol_a: KO\n    symbol_b: KO\n",
		"duplicate name":   minimal + "  - symbol_a: KO\n    symbol_b: PEP\n",
		"bad source":       minimal + "source: carrier-pigeon\n",
		"kafka no brokers": minimal + "source: kafka\n",
		"finnhub no key":   minimal + "source: finnhub\n",
		"theta order":      minimal + "estimator:\n  theta_min: 3\n  theta_max: 2\n",
		"bad timeframe":    minimal + "aligner:\n  timeframe: 2h\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := Parse([]byte(doc))
			require.NoError(t, err)
			assert.Error(t, c.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	env := map[string]string{
		"KAFKA_BROKERS":   "k1:9092, k2:9092,",
		"SIGNALS_TOPIC":   "sig",
		"REDIS_ADDR":      "redis:6379",
		"CLICKHOUSE_HOST": "ch",
		"SOURCE":          "kafka",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "sig", c.Kafka.SignalsTopic)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.True(t, c.ClickHouse.Enabled)
	assert.Equal(t, SourceKafka, c.Source)
	assert.True(t, c.PublishSignals())
	assert.NoError(t, c.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal+"estimator:\n  lookback: 30\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, c.Estimator.Lookback)
	assert.Equal(t, 1.5, c.Estimator.ThetaMin)

	pairs := c.PairModels()
	require.Len(t, pairs, 1)
	assert.Equal(t, "KO", pairs[0].SymbolA)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
