// Package config carrega as configurações do serviço a partir do ambiente
// (opcionalmente semeado por um arquivo .env), com os padrões de produção.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr string
	InstanceID string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisOpTimeout time.Duration

	// DatabaseURL seleciona a fonte de verdade Postgres. Vazio usa a de memória.
	DatabaseURL string

	SaturationThreshold int64
	SaturationWindow    time.Duration
	LowWaterMark        int64
	CacheTTL            time.Duration
	DrainInterval       time.Duration

	RateEnabled        bool
	RateRPS            float64
	RateBurst          int
	RetryAfter         time.Duration
	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	StatsPrefix    string
	StartupRetries int

	LogLevel  string
	LogFormat string
}

var defaults = map[string]interface{}{
	"listen_addr":          ":8080",
	"redis_addr":           "localhost:6379",
	"redis_db":             0,
	"redis_op_timeout":     "300ms",
	"saturation_threshold": 50,
	"saturation_window":    "60s",
	"low_water_mark":       20,
	"cache_ttl":            "30s",
	"drain_interval":       "3s",
	"rate_enabled":         false,
	"rate_rps":             5,
	"rate_burst":           10,
	"retry_after":          "1s",
	"concurrency_max":      0,
	"concurrency_timeout":  "0s",
	"stats_prefix":         "loans:stats",
	"startup_retries":      5,
	"log_level":            "info",
	"log_format":           "json",
}

// Load lê a configuração. O arquivo .env em envFile é aplicado antes, se
// existir; variáveis de ambiente reais sempre têm precedência.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		ListenAddr:          v.GetString("listen_addr"),
		InstanceID:          strings.TrimSpace(v.GetString("instance_id")),
		RedisAddr:           v.GetString("redis_addr"),
		RedisPassword:       v.GetString("redis_password"),
		RedisDB:             v.GetInt("redis_db"),
		RedisOpTimeout:      v.GetDuration("redis_op_timeout"),
		DatabaseURL:         v.GetString("database_url"),
		SaturationThreshold: v.GetInt64("saturation_threshold"),
		SaturationWindow:    v.GetDuration("saturation_window"),
		LowWaterMark:        v.GetInt64("low_water_mark"),
		CacheTTL:            v.GetDuration("cache_ttl"),
		DrainInterval:       v.GetDuration("drain_interval"),
		RateEnabled:         v.GetBool("rate_enabled"),
		RateRPS:             v.GetFloat64("rate_rps"),
		RateBurst:           v.GetInt("rate_burst"),
		RetryAfter:          v.GetDuration("retry_after"),
		ConcurrencyMax:      v.GetInt("concurrency_max"),
		ConcurrencyTimeout:  v.GetDuration("concurrency_timeout"),
		StatsPrefix:         v.GetString("stats_prefix"),
		StartupRetries:      v.GetInt("startup_retries"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
	}
	if cfg.InstanceID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "unknown"
		}
		cfg.InstanceID = host
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate confere as relações de que o alívio de carga depende.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.SaturationThreshold <= 0 {
		return errors.New("SATURATION_THRESHOLD must be > 0")
	}
	if c.LowWaterMark <= 0 || c.LowWaterMark >= c.SaturationThreshold {
		return errors.New("LOW_WATER_MARK must be > 0 and below SATURATION_THRESHOLD")
	}
	if c.SaturationWindow <= 0 {
		return errors.New("SATURATION_WINDOW must be > 0")
	}
	if c.CacheTTL <= 0 || c.CacheTTL >= c.SaturationWindow {
		return errors.New("CACHE_TTL must be > 0 and shorter than SATURATION_WINDOW")
	}
	if c.DrainInterval <= 0 {
		return errors.New("DRAIN_INTERVAL must be > 0")
	}
	if c.RedisOpTimeout <= 0 {
		return errors.New("REDIS_OP_TIMEOUT must be > 0")
	}
	if c.RateEnabled && (c.RateRPS <= 0 || c.RateBurst <= 0) {
		return errors.New("RATE_RPS and RATE_BURST must be > 0 when RATE_ENABLED=true")
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return nil
}
