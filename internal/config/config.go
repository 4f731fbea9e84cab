package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL   = "http://localhost:3000/api/v1"
	DefaultCableURL = "ws://localhost:3000/cable"
)

// Config represents the global ~/.convo/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	APIURL         string `toml:"api_url"`
	CableURL       string `toml:"cable_url"`
	OptimisticSend bool   `toml:"optimistic_send"`
	LogLevel       string `toml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		APIURL:   DefaultAPIURL,
		CableURL: DefaultCableURL,
		LogLevel: "info",
	}
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default when the file
// does not exist, then applies environment overrides. envFile is an optional
// dotenv file whose values never override variables already set.
func LoadOrDefault(path, envFile string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from CONVO_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CONVO_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("CONVO_CABLE_URL"); v != "" {
		c.CableURL = v
	}
	if v := os.Getenv("CONVO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CONVO_OPTIMISTIC_SEND"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.OptimisticSend = b
		}
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
