// Package config loads EduInsight settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig
	Data    DataConfig
	Models  ModelConfig
	Logging LoggingConfig
	Client  ClientConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port        int
	GinMode     string
	CORSOrigins []string
}

// Addr returns the listen address for Port.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// DataConfig locates the student dataset
type DataConfig struct {
	Dir  string
	File string
}

// Path returns the dataset file path.
func (d DataConfig) Path() string {
	return filepath.Join(d.Dir, d.File)
}

// ModelConfig holds artifact settings
type ModelConfig struct {
	Dir            string
	TrainOnStartup bool
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// ClientConfig holds settings for the API client
type ClientConfig struct {
	BaseURL string
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        5000,
			GinMode:     "debug",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Data:    DataConfig{Dir: "./data", File: "student-mat.csv"},
		Models:  ModelConfig{Dir: "./artifacts", TrainOnStartup: true},
		Logging: LoggingConfig{Level: "info"},
		Client:  ClientConfig{BaseURL: "http://localhost:5000"},
	}
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "failed to load %s", p)
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, which has the signature of
// os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	env := envReader{lookup: lookup}

	cfg.Server.Port = env.int("PORT", cfg.Server.Port)
	cfg.Server.GinMode = env.str("GIN_MODE", cfg.Server.GinMode)
	cfg.Server.CORSOrigins = env.list("CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Data.Dir = env.str("DATA_DIR", cfg.Data.Dir)
	cfg.Data.File = env.str("DATASET_FILE", cfg.Data.File)
	cfg.Models.Dir = env.str("MODEL_DIR", cfg.Models.Dir)
	cfg.Models.TrainOnStartup = env.bool("TRAIN_ON_STARTUP", cfg.Models.TrainOnStartup)
	cfg.Logging.Level = env.str("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Pretty = env.bool("LOG_PRETTY", cfg.Logging.Pretty)
	cfg.Client.BaseURL = env.str("EDUINSIGHT_API_URL", cfg.Client.BaseURL)

	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Validate checks value ranges after flags or variables have been applied.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.NewValidationError("PORT", "must be within [1, 65535]", c.Server.Port)
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.NewValidationError("GIN_MODE", "must be debug, release or test", c.Server.GinMode)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return errors.NewValidationError("LOG_LEVEL", "must be debug, info, warn or error", c.Logging.Level)
	}
	if c.Data.File == "" {
		return errors.NewValidationError("DATASET_FILE", "must not be empty", c.Data.File)
	}
	if c.Models.Dir == "" {
		return errors.NewValidationError("MODEL_DIR", "must not be empty", c.Models.Dir)
	}
	if c.Client.BaseURL == "" {
		return errors.NewValidationError("EDUINSIGHT_API_URL", "must not be empty", c.Client.BaseURL)
	}
	return nil
}

// envReader keeps the first parse error so Load can report it.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) value(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.value(key); ok {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.value(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(errors.NewValidationError(key, "must be an integer", v))
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := e.value(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(errors.NewValidationError(key, "must be a boolean", v))
		return def
	}
	return b
}

func (e *envReader) list(key string, def []string) []string {
	v, ok := e.value(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (e *envReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
