package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// defaultEnvFile is loaded when present and no --env-file is given.
const defaultEnvFile = ".env"

var errUnknownEnvFile = errors.New("env file doesn't have a known file suffix")

// Config is the command configuration read from the environment.
type Config struct {
	ViewerAddr      string        `env:"VIEWER_ADDR"             envDefault:":5000"`
	ViewerURL       string        `env:"VIEWER_URL"              envDefault:"http://localhost:5000"`
	ViewerChannel   string        `env:"VIEWER_CHANNEL"          envDefault:"fsm_viewer"`
	Compression     string        `env:"VIEWER_COMPRESSION"      envDefault:"lz4"`
	PublishInterval time.Duration `env:"VIEWER_PUBLISH_INTERVAL" envDefault:"250ms"`
	StoreMaxAge     time.Duration `env:"VIEWER_MAX_AGE"          envDefault:"3s"`
	StoreMaxLen     int           `env:"VIEWER_MAX_MACHINES"     envDefault:"300"`
	RedisAddr       string        `env:"REDIS_ADDR"              envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB"                envDefault:"0"`
}

// LoadConfig reads the command configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile reads variables from a .env, .yaml or .yml file. YAML files
// keep their variables under a top-level env key.
func loadEnvFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".env", "":
		return godotenv.Read(path)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
		if err != nil {
			return nil, err
		}

		var file struct {
			Env map[string]string `yaml:"env"`
		}

		err = yaml.Unmarshal(data, &file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		return file.Env, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownEnvFile, filepath.Base(path))
	}
}

// applyEnvFile exports the variables of path that are not already set.
// An empty path loads .env from the working directory when it exists.
func applyEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil //nolint:nilerr // The default file is optional
		}

		path = defaultEnvFile
	}

	vars, err := loadEnvFile(path)
	if err != nil {
		return err
	}

	for key, value := range vars {
		if _, ok := os.LookupEnv(key); ok {
			continue
		}

		err := os.Setenv(key, value)
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	return nil
}
