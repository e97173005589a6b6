package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/ingestion"
	redisstore "github.com/poiesic/imgfeat/storage/redis"
)

const (
	envPrefix      = "IMGFEAT"
	defaultTimeout = 10 * time.Second
)

// settings is everything a command can be configured with. Values come from
// defaults, then the config file, then IMGFEAT_* variables, then flags.
type settings struct {
	DB        string            `mapstructure:"db"`
	Featurize featurize.Config  `mapstructure:"featurize"`
	Ingestion ingestion.Config  `mapstructure:"ingestion"`
	Redis     redisstore.Config `mapstructure:"redis"`
}

func defaultSettings() *settings {
	return &settings{
		Featurize: *featurize.DefaultConfig(),
		Ingestion: *ingestion.DefaultConfig(),
		Redis:     redisstore.Config{KeyPrefix: redisstore.DefaultKeyPrefix},
	}
}

// loadSettings reads the optional .env and config files named by the global
// flags, then applies any flags set on the command line.
func loadSettings(c *cli.Context) (*settings, error) {
	if envFile := c.String("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	s, err := readSettings(c.String("config"))
	if err != nil {
		return nil, err
	}
	applyFlags(c, s)
	return s, nil
}

func readSettings(configFile string) (*settings, error) {
	s := defaultSettings()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	setDefaults(v, s)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return s, nil
}

func setDefaults(v *viper.Viper, s *settings) {
	v.SetDefault("db", s.DB)

	v.SetDefault("featurize.backend", s.Featurize.Backend)
	v.SetDefault("featurize.target_dim", s.Featurize.TargetDim)
	v.SetDefault("featurize.host", s.Featurize.Host)
	v.SetDefault("featurize.model", s.Featurize.Model)
	v.SetDefault("featurize.cascade_path", s.Featurize.CascadePath)
	v.SetDefault("featurize.min_confidence", s.Featurize.MinConfidence)
	v.SetDefault("featurize.fetch_timeout", s.Featurize.FetchTimeout)
	v.SetDefault("featurize.fetch_retries", s.Featurize.FetchRetries)
	v.SetDefault("featurize.region", s.Featurize.Region)

	v.SetDefault("ingestion.io_threads", s.Ingestion.IOThreads)
	v.SetDefault("ingestion.timeout", s.Ingestion.Timeout)
	v.SetDefault("ingestion.chunk_size", s.Ingestion.ChunkSize)
	v.SetDefault("ingestion.print_interval", s.Ingestion.PrintInterval)
	v.SetDefault("ingestion.sink_retries", s.Ingestion.SinkRetries)
	v.SetDefault("ingestion.sink_retry_delay", s.Ingestion.SinkRetryDelay)

	v.SetDefault("redis.addr", s.Redis.Addr)
	v.SetDefault("redis.password", s.Redis.Password)
	v.SetDefault("redis.db", s.Redis.DB)
	v.SetDefault("redis.key_prefix", s.Redis.KeyPrefix)
}

// applyFlags overrides settings with flags given explicitly on the command line.
func applyFlags(c *cli.Context, s *settings) {
	if c.IsSet("db") {
		s.DB = c.String("db")
	}

	if c.IsSet("backend") {
		s.Featurize.Backend = c.String("backend")
	}
	if c.IsSet("target-dim") {
		s.Featurize.TargetDim = c.Int("target-dim")
	}
	if c.IsSet("host") {
		s.Featurize.Host = c.String("host")
	}
	if c.IsSet("model") {
		s.Featurize.Model = c.String("model")
	}
	if c.IsSet("cascade") {
		s.Featurize.CascadePath = c.String("cascade")
	}
	if c.IsSet("min-confidence") {
		s.Featurize.MinConfidence = float32(c.Float64("min-confidence"))
	}

	if c.IsSet("io-threads") {
		s.Ingestion.IOThreads = c.Int("io-threads")
	}
	if c.IsSet("timeout") {
		s.Ingestion.Timeout = c.Duration("timeout")
	}
	if c.IsSet("chunk-size") {
		s.Ingestion.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("print-interval") {
		s.Ingestion.PrintInterval = c.Int("print-interval")
	}

	if c.IsSet("redis-addr") {
		s.Redis.Addr = c.String("redis-addr")
	}
}
