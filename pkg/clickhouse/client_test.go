package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestBuildOptions(t *testing.T) {
	cfg := ClientConfig{
		Host:        "ch.internal",
		Port:        9440,
		Database:    "pairspread",
		User:        "writer",
		Password:    "secret",
		DialTimeout: 2 * time.Second,
		MaxExecTime: 90 * time.Second,
	}
	WithAsyncInsert(true, true)(&cfg)
	WithTimeouts(2*time.Second, 45*time.Second)(&cfg)

	opts := buildOptions(cfg)
	assert.Equal(t, ch.Native, opts.Protocol)
	assert.Equal(t, []string{"ch.internal:9440"}, opts.Addr)
	assert.Equal(t, "pairspread", opts.Auth.Database)
	assert.Equal(t, "writer", opts.Auth.Username)
	assert.Equal(t, 90, opts.Settings["max_execution_time"])
	assert.Equal(t, 1, opts.Settings["async_insert"])
	assert.Equal(t, 1, opts.Settings["wait_for_async_insert"])
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, 45*time.Second, opts.ReadTimeout)
}

func TestBuildOptionsHTTP(t *testing.T) {
	cfg := ClientConfig{Host: "localhost", Port: 8123}
	WithHTTP(true)(&cfg)
	opts := buildOptions(cfg)
	assert.Equal(t, ch.HTTP, opts.Protocol)
	assert.Empty(t, opts.Settings)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.Error(t, err)
}
