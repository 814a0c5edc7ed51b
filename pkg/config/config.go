package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"pairspread/internal/domain/models"
	"pairspread/internal/services/spread"
	"pairspread/pkg/logger"
)

// Source selects where trades come from.
const (
	SourceKafka   = "kafka"
	SourceFinnhub = "finnhub"
	SourceNone    = "none"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	// Source is kafka, finnhub or none (HTTP ingestion only).
	Source  string `yaml:"source" default:"none" validate:"oneof=kafka finnhub none"`
	Aligner struct {
		Timeframe string `yaml:"timeframe" default:"1s" validate:"oneof=1s 1m 5m"`
		// MaxRPS throttles trades per symbol before alignment; 0 disables it.
		MaxRPS int `yaml:"max_rps" validate:"gte=0"`
	} `yaml:"aligner"`

	Estimator spread.Config `yaml:"estimator"`
	Pairs     []Pair        `yaml:"pairs" validate:"min=1,dive"`

	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		TicksTopic     string   `yaml:"ticks_topic" default:"trades"`
		PairTicksTopic string   `yaml:"pair_ticks_topic"`
		SignalsTopic   string   `yaml:"signals_topic" default:"spread-signals"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"pairspread"`
			Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pairspread"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled     bool          `yaml:"enabled"`
		Addr        string        `yaml:"addr" default:"localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		Prefix      string        `yaml:"prefix" default:"pairspread"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"10m"`
		L1Size      int           `yaml:"l1_size" default:"1024"`
		L1TTL       time.Duration `yaml:"l1_ttl" default:"2s"`
	} `yaml:"redis"`

	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"finnhub"`

	API struct {
		RateLimit struct {
			Capacity        int     `yaml:"capacity" default:"20" validate:"gte=1"`
			RefillPerSecond float64 `yaml:"refill_per_second" default:"5" validate:"gt=0"`
		} `yaml:"rate_limit"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"30s"`
	} `yaml:"api"`
}

// Pair is one configured leg pair. Name defaults to "<symbol_a>/<symbol_b>".
type Pair struct {
	Name    string  `yaml:"name" validate:"max=64"`
	SymbolA string  `yaml:"symbol_a" validate:"required"`
	SymbolB string  `yaml:"symbol_b" validate:"required,nefield=SymbolA"`
	Capital float64 `yaml:"capital" default:"10000" validate:"gt=0"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, fills defaults and validates.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for i := range c.Pairs {
		p := &c.Pairs[i]
		if err := defaults.Set(p); err != nil {
			return nil, fmt.Errorf("pair %d defaults: %w", i, err)
		}
		if p.Name == "" {
			p.Name = p.SymbolA + "/" + p.SymbolB
		}
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))
	}
	if v := getenv("TICKS_TOPIC"); v != "" {
		c.Kafka.TicksTopic = v
	}
	if v := getenv("SIGNALS_TOPIC"); v != "" {
		c.Kafka.SignalsTopic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("SOURCE"); v != "" {
		c.Source = v
	}
}

// Validate checks struct tags, then the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	names := lo.Map(c.Pairs, func(p Pair, _ int) string { return p.Name })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		errs = append(errs, fmt.Errorf("duplicate pair names: %s", strings.Join(dup, ", ")))
	}
	switch c.Source {
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when source is kafka"))
		}
		if c.Kafka.TicksTopic == "" && c.Kafka.PairTicksTopic == "" {
			errs = append(errs, errors.New("kafka.ticks_topic or kafka.pair_ticks_topic is required when source is kafka"))
		}
	case SourceFinnhub:
		if c.Finnhub.APIKey == "" {
			errs = append(errs, errors.New("finnhub.api_key is required when source is finnhub"))
		}
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		errs = append(errs, errors.New("clickhouse.host is required when clickhouse is enabled"))
	}
	return errors.Join(errs...)
}

// PublishSignals reports whether signals go to Kafka.
func (c *Config) PublishSignals() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.SignalsTopic != ""
}

// PairModels converts the configured pairs to domain pairs.
func (c *Config) PairModels() []models.Pair {
	return lo.Map(c.Pairs, func(p Pair, _ int) models.Pair {
		return models.Pair{Name: p.Name, SymbolA: p.SymbolA, SymbolB: p.SymbolB, Capital: p.Capital}
	})
}

// Symbols returns every distinct leg symbol in configuration order.
func (c *Config) Symbols() []string {
	return lo.Uniq(lo.FlatMap(c.Pairs, func(p Pair, _ int) []string {
		return []string{p.SymbolA, p.SymbolB}
	}))
}
