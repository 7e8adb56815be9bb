// Package config loads plainapi settings from a YAML, TOML or INI file, a
// .env file and PLAINAPI_* environment variables, in increasing precedence.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"plainapi/internal/logging"
	"plainapi/internal/oracle"
	"plainapi/internal/schemasrc"
)

type Config struct {
	Log    logging.Options `yaml:"log" toml:"log" ini:"log"`
	Schema SchemaConfig    `yaml:"schema" toml:"schema" ini:"schema"`
	Oracle OracleConfig    `yaml:"oracle" toml:"oracle" ini:"oracle"`
	HTTP   HTTPConfig      `yaml:"http" toml:"http" ini:"http"`
}

// SchemaConfig names at most one schema source.
type SchemaConfig struct {
	Path   string `yaml:"path" toml:"path" ini:"path" validate:"excluded_with=SQLite MySQL"`
	SQLite string `yaml:"sqlite" toml:"sqlite" ini:"sqlite" validate:"excluded_with=MySQL"`
	MySQL  string `yaml:"mysql" toml:"mysql" ini:"mysql"`
	// Parse CREATE TABLE IF NOT EXISTS instead of skipping it.
	IncludeIfNotExists bool `yaml:"includeIfNotExists" toml:"includeIfNotExists" ini:"includeIfNotExists"`
}

// Source converts the schema settings to a schemasrc selection.
func (s SchemaConfig) Source() schemasrc.Options {
	return schemasrc.Options{Path: s.Path, SQLite: s.SQLite, MySQL: s.MySQL}
}

type OracleConfig struct {
	// Rule file; empty uses the built-in rules.
	Rules   string        `yaml:"rules" toml:"rules" ini:"rules"`
	Watch   bool          `yaml:"watch" toml:"watch" ini:"watch"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" ini:"timeout" validate:"gte=0"`
	Cache   CacheConfig   `yaml:"cache" toml:"cache" ini:"cache"`
}

type CacheConfig struct {
	Backend string                    `yaml:"backend" toml:"backend" ini:"backend" validate:"oneof=none freecache redis"`
	Size    int                       `yaml:"size" toml:"size" ini:"size" validate:"gte=0"`
	TTL     time.Duration             `yaml:"ttl" toml:"ttl" ini:"ttl" validate:"gte=0"`
	Redis   *oracle.RedisStoreOptions `yaml:"redis" toml:"redis" ini:"redis" validate:"required_if=Backend redis"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr" toml:"addr" ini:"addr" validate:"required"`
	AllowOrigins []string      `yaml:"allowOrigins" toml:"allowOrigins" ini:"allowOrigins"`
	ReadTimeout  time.Duration `yaml:"readTimeout" toml:"readTimeout" ini:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout" toml:"writeTimeout" ini:"writeTimeout"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Log: logging.Options{Level: "info", Format: "text"},
		Oracle: OracleConfig{
			Timeout: 10 * time.Second,
			Cache: CacheConfig{
				Backend: "freecache",
				Size:    16 * 1024 * 1024,
				TTL:     24 * time.Hour,
			},
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

var validate = validator.New()

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := decode(filepath.Ext(path), data, cfg); err != nil {
			return nil, errors.Wrapf(err, "decode config %s", path)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func decode(ext string, data []byte, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return errors.Errorf("unknown keys %v", undec)
		}
		return nil
	case ".ini":
		f, err := ini.Load(data)
		if err != nil {
			return err
		}
		return f.MapTo(cfg)
	}
	return errors.Errorf("unsupported config format %q", ext)
}

// applyEnv overlays PLAINAPI_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"PLAINAPI_LOG_LEVEL":    &cfg.Log.Level,
		"PLAINAPI_LOG_FORMAT":   &cfg.Log.Format,
		"PLAINAPI_SCHEMA_PATH":  &cfg.Schema.Path,
		"PLAINAPI_SQLITE":       &cfg.Schema.SQLite,
		"PLAINAPI_MYSQL_DSN":    &cfg.Schema.MySQL,
		"PLAINAPI_ORACLE_RULES": &cfg.Oracle.Rules,
		"PLAINAPI_CACHE":        &cfg.Oracle.Cache.Backend,
		"PLAINAPI_HTTP_ADDR":    &cfg.HTTP.Addr,
	}
	for k, dst := range str {
		if v, ok := lookup(k); ok {
			*dst = v
		}
	}

	if v, ok := lookup("PLAINAPI_ORACLE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "PLAINAPI_ORACLE_TIMEOUT")
		}
		cfg.Oracle.Timeout = d
	}
	if v, ok := lookup("PLAINAPI_INCLUDE_IF_NOT_EXISTS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "PLAINAPI_INCLUDE_IF_NOT_EXISTS")
		}
		cfg.Schema.IncludeIfNotExists = b
	}
	if v, ok := lookup("PLAINAPI_REDIS_ADDR"); ok {
		if cfg.Oracle.Cache.Redis == nil {
			cfg.Oracle.Cache.Redis = &oracle.RedisStoreOptions{}
		}
		cfg.Oracle.Cache.Redis.Addr = v
	}
	return nil
}
