package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/typedkv/internal/database"
	"github.com/charlesng35/typedkv/pkg/codec"
	"github.com/charlesng35/typedkv/pkg/kv"
	"github.com/charlesng35/typedkv/pkg/validator"
)

const defaultStoreTable = "kv_store"

// Config represents the runtime configuration for the typedkv tooling.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// StoreConfig selects the table a process works against and how values in
// it are typed.
type StoreConfig struct {
	Table      string        `mapstructure:"table" validate:"omitempty,tablename"`
	ValueType  string        `mapstructure:"value_type"`
	BatchSize  int           `mapstructure:"batch_size" validate:"omitempty,gte=1"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("KVSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.ValidateStruct(&config); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &config, nil
}

// ConnectionSettings converts the section into driver connection options,
// picking the host block that matches the configured driver.
func (c DatabaseConfig) ConnectionSettings() database.Config {
	cfg := database.Config{
		Driver: c.Driver,
		Path:   c.Path,
		DSN:    c.DSN,
	}

	var host DBAuthConfig
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	}
	if host.Enabled {
		cfg.Host = host.Host
		cfg.Port = host.Port
		cfg.Name = host.Database
		cfg.User = host.Username
		cfg.Password = host.Password
	}

	return cfg
}

// StoreSettings builds the engine configuration from the store and database
// sections, applying fallbacks for anything left unset.
func (c Config) StoreSettings() (kv.Config, error) {
	table := strings.TrimSpace(c.Store.Table)
	if table == "" {
		table = defaultStoreTable
	}

	raw := strings.TrimSpace(c.Store.ValueType)
	if raw == "" {
		raw = string(codec.TypeJSON)
	}
	valueType, err := codec.ParseType(raw)
	if err != nil {
		return kv.Config{}, err
	}

	return kv.Config{
		Database: c.Database.ConnectionSettings(),
		Table:    table,
		Type:     valueType,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/typedkv.sqlite")

	v.SetDefault("store.table", defaultStoreTable)
	v.SetDefault("store.value_type", "json")
	v.SetDefault("store.batch_size", 1000)
	v.SetDefault("store.default_ttl", "0s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
