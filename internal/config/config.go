package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Worker     WorkerConfig    `mapstructure:"worker"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Lending    LendingConfig   `mapstructure:"lending"`
	Log        LogConfig       `mapstructure:"log"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	DecisionsTopic string   `mapstructure:"decisions_topic"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type WorkerConfig struct {
	WorkerCount int           `mapstructure:"worker_count"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchWait   time.Duration `mapstructure:"batch_wait"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// LendingConfig holds the decision thresholds. Decimals are strings so YAML
// and env values keep their exact precision.
type LendingConfig struct {
	MaxIncomeShare string       `mapstructure:"max_income_share"`
	Tiers          []TierConfig `mapstructure:"tiers"`
}

type TierConfig struct {
	ScoreAbove int    `mapstructure:"score_above"`
	MinRate    string `mapstructure:"min_rate"`
}

// Policy converts the lending section into a validated engine policy.
func (c LendingConfig) Policy() (engine.Policy, error) {
	share, err := decimal.NewFromString(c.MaxIncomeShare)
	if err != nil {
		return engine.Policy{}, fmt.Errorf("lending.max_income_share: %w", err)
	}

	p := engine.Policy{MaxIncomeShare: share}
	for i, t := range c.Tiers {
		rate, err := decimal.NewFromString(t.MinRate)
		if err != nil {
			return engine.Policy{}, fmt.Errorf("lending.tiers[%d].min_rate: %w", i, err)
		}
		p.Tiers = append(p.Tiers, engine.Tier{Above: t.ScoreAbove, MinRate: rate})
	}

	if err := p.Validate(); err != nil {
		return engine.Policy{}, err
	}
	return p, nil
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (CREDITGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		// a missing file keeps the defaults; a broken one is an error
		if err := v.MergeInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// env override (CREDITGW_MYSQL_DSN -> mysql.dsn)
	v.SetEnvPrefix("CREDITGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
