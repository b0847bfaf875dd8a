// Package config loads the rollup service configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ApplicationName identifies the service in logs and database sessions.
const ApplicationName = "checkin-rollup"

// EnvPrefix prefixes environment overrides. Dots in a key become underscores,
// so rollup.run_at is read from CHECKIN_ROLLUP_ROLLUP_RUN_AT.
const EnvPrefix = "CHECKIN_ROLLUP"

// Storage drivers
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

// Scheduler and lock drivers
const (
	DriverLocal = "local"
	DriverAsynq = "asynq"
	DriverRedis = "redis"
)

// Config represents the rollup service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Rollup     RollupConfig     `mapstructure:"rollup"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host" default:"0.0.0.0"`
	Port            int           `mapstructure:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"30s"`
}

// StorageConfig selects the backend holding events and summaries
type StorageConfig struct {
	Driver   string         `mapstructure:"driver" default:"postgres" validate:"oneof=memory postgres mongo"`
	Postgres DatabaseConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host           string        `mapstructure:"host" default:"localhost"`
	Port           int           `mapstructure:"port" default:"5432"`
	User           string        `mapstructure:"user" default:"postgres"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database" default:"checkin"`
	SSLMode        string        `mapstructure:"ssl_mode" default:"disable"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" default:"5s"`
	MaxOpenConns   int           `mapstructure:"max_open_conns" default:"10"`
}

// GetConnectionString returns a postgres DSN
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// MongoConfig contains MongoDB connection settings. Transactions require a replica set.
type MongoConfig struct {
	URI            string        `mapstructure:"uri" default:"mongodb://localhost:27017/?replicaSet=rs0"`
	Database       string        `mapstructure:"database" default:"checkin"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" default:"10s"`
}

// RedisConfig contains the Redis connection used by the lock and asynq drivers
type RedisConfig struct {
	Addr     string `mapstructure:"addr" default:"localhost:6379"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// RollupConfig contains the daily rollup cycle settings
type RollupConfig struct {
	Enabled      bool          `mapstructure:"enabled" default:"true"`
	RunAt        string        `mapstructure:"run_at" default:"02:00" validate:"required"`
	Timezone     string        `mapstructure:"timezone" default:"America/Los_Angeles" validate:"required"`
	Retention    time.Duration `mapstructure:"retention" default:"1440h" validate:"gt=0"`
	BatchSize    int           `mapstructure:"batch_size" default:"1000" validate:"min=1,max=100000"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout" default:"30m" validate:"gt=0"`
	Scheduler    string        `mapstructure:"scheduler" default:"local" validate:"oneof=local asynq"`
	Lock         string        `mapstructure:"lock" default:"local" validate:"oneof=local redis"`
	LockKey      string        `mapstructure:"lock_key" default:"checkin-rollup:cycle"`
}

// Location loads the configured time zone
func (c *RollupConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid rollup timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled" default:"true"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path" default:"stdout"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout" default:"30s"`
}

// Load reads the YAML file at path. ${VAR} references are expanded from the
// environment, which is first populated from a .env file when one exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(raw)
}

// Parse decodes raw YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg := new(Config)
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadConfig(bytes.NewReader([]byte(os.ExpandEnv(string(raw))))); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// bindEnvs registers every leaf key of cfg so environment overrides apply to
// keys the YAML leaves out.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts[:len(parts):len(parts)], tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	if _, err := cfg.Rollup.Location(); err != nil {
		return err
	}
	if err := validateRunAt(cfg.Rollup.RunAt); err != nil {
		return err
	}

	switch cfg.Storage.Driver {
	case StoragePostgres:
		if cfg.Storage.Postgres.Host == "" || cfg.Storage.Postgres.Database == "" {
			return fmt.Errorf("storage.postgres host and database are required")
		}
	case StorageMongo:
		if cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "" {
			return fmt.Errorf("storage.mongo uri and database are required")
		}
	}

	if cfg.Rollup.Lock == DriverRedis && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for rollup.lock %q", cfg.Rollup.Lock)
	}
	if cfg.Rollup.Scheduler == DriverAsynq && cfg.Rollup.Lock != DriverRedis {
		return fmt.Errorf("rollup.scheduler asynq requires rollup.lock redis")
	}

	return nil
}

func validateRunAt(runAt string) error {
	hh, mm, ok := strings.Cut(runAt, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return fmt.Errorf("rollup.run_at must be HH:MM, got %q", runAt)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return fmt.Errorf("rollup.run_at hour out of range: %q", runAt)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return fmt.Errorf("rollup.run_at minute out of range: %q", runAt)
	}
	return nil
}
