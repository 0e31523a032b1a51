package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"KlineFeed/internal/domain/models"
)

type Config struct {
	Environment string `yaml:"environment" default:"production"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Binance struct {
		WebsocketURL string   `yaml:"websocket_url" default:"wss://stream.binance.com:9443/ws" validate:"required"`
		Intervals    []string `yaml:"intervals" validate:"min=1"`
		// Provider hard cap: 1024 streams per connection.
		MaxChannelsPerConnection int           `yaml:"max_channels_per_connection" default:"1024" validate:"gt=0"`
		ReconnectDelay           time.Duration `yaml:"reconnect_delay" default:"1s"`
		ReconnectMax             time.Duration `yaml:"reconnect_max" default:"30s"`
		// Binance recommends no aggressive client pings; rely on a long
		// idle read deadline instead so quiet channels do not flap.
		IdleTimeout time.Duration `yaml:"idle_timeout" default:"5m"`
	} `yaml:"binance"`
	Ranking struct {
		PostgresDSN  string        `yaml:"postgres_dsn" validate:"required"`
		TopN         int           `yaml:"top_n" default:"500" validate:"gt=0"`
		QueryTimeout time.Duration `yaml:"query_timeout" default:"10s"`
		SnapshotPath string        `yaml:"snapshot_path" default:"data/symbols_snapshot.json"`
	} `yaml:"ranking"`
	Stream struct {
		RedisAddr     string `yaml:"redis_addr" default:"localhost:6379"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		MaxLen        int64  `yaml:"max_len" default:"1000" validate:"gt=0"`
		SymbolSetKey  string `yaml:"symbol_set_key" default:"cryptos"`
	} `yaml:"stream"`
	Supervisor struct {
		Cooldown time.Duration `yaml:"cooldown" default:"5s"`
	} `yaml:"supervisor"`
	Reclaimer struct {
		Period time.Duration `yaml:"period" default:"1h"`
	} `yaml:"reclaimer"`
}

// Load reads a YAML configuration file, applies defaults and validates.
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

// LoadWithEnv loads config from YAML, overrides with environment
// variables and validates the result. Environment values can satisfy
// fields the file leaves unset.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
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

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if len(c.Binance.Intervals) == 0 {
		c.Binance.Intervals = defaultIntervals()
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_WS_URL"); v != "" {
		c.Binance.WebsocketURL = v
	}
	if v := os.Getenv("INTERVALS"); v != "" {
		c.Binance.Intervals = strings.Split(v, ",")
	}
	if v := os.Getenv("MAX_CHANNELS_PER_CONNECTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Binance.MaxChannelsPerConnection = n
		}
	}
	if v := os.Getenv("RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Binance.ReconnectDelay = d
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Ranking.PostgresDSN = v
	}
	if v := os.Getenv("TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ranking.TopN = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Stream.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Stream.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Stream.RedisDB = n
		}
	}
	if v := os.Getenv("RECLAIM_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Reclaimer.Period = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, unknown := models.ParseIntervals(c.Binance.Intervals); len(unknown) > 0 {
		return fmt.Errorf("unknown intervals: %s", strings.Join(unknown, ", "))
	}
	if c.Binance.MaxChannelsPerConnection < len(c.Binance.Intervals) {
		return fmt.Errorf("max_channels_per_connection (%d) below interval count (%d)",
			c.Binance.MaxChannelsPerConnection, len(c.Binance.Intervals))
	}
	return nil
}

// Intervals returns the configured interval set as typed values.
func (c *Config) Intervals() []models.Interval {
	parsed, _ := models.ParseIntervals(c.Binance.Intervals)
	return parsed
}

func defaultIntervals() []string {
	out := make([]string, 0, len(models.ValidIntervals))
	for _, i := range models.ValidIntervals {
		out = append(out, string(i))
	}
	return out
}
