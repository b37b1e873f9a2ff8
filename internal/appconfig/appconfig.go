// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// DefaultBackendURL is where the classifier backend listens when run locally.
	DefaultBackendURL = "http://localhost:5000"
	// defaultRequestTimeout matches the upload timeout used for classification batches.
	defaultRequestTimeout = 120 * time.Second
	// defaultCameraInterval is the delay between two live detections.
	defaultCameraInterval = 1 * time.Second
	// defaultStateDir holds the durable client storage, charts and logs.
	defaultStateDir = ".escombro"
)

// Config represents the top-level application configuration.
type Config struct {
	BackendURL       string `json:"backendURL" mapstructure:"backendURL"`
	Language         string `json:"language,omitempty" mapstructure:"language"`
	StateDir         string `json:"stateDir,omitempty" mapstructure:"stateDir"`
	ChartsDir        string `json:"chartsDir,omitempty" mapstructure:"chartsDir"`
	ExportDir        string `json:"exportDir,omitempty" mapstructure:"exportDir"`
	TimeoutSeconds   int    `json:"timeout,omitempty" mapstructure:"timeout"`
	CameraIntervalMs int    `json:"cameraInterval,omitempty" mapstructure:"cameraInterval"`
	CameraSource     string `json:"cameraSource,omitempty" mapstructure:"cameraSource"`
	MetricsAddr      string `json:"metricsAddr,omitempty" mapstructure:"metricsAddr"`
	LogFile          string `json:"logFile,omitempty" mapstructure:"logFile"`
	Debug            bool   `json:"debug" mapstructure:"debug"`
	JSONMode         bool   `json:"jsonMode" mapstructure:"jsonMode"`
	ConfigPath       string `json:"-" mapstructure:"-"`
}

// configSchema constrains the on-disk JSON document.
var configSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"backendURL":     map[string]any{"type": "string", "minLength": 1},
		"language":       map[string]any{"type": "string", "pattern": "^[A-Za-z]{2,3}([-_][A-Za-z0-9]+)*$"},
		"stateDir":       map[string]any{"type": "string"},
		"chartsDir":      map[string]any{"type": "string"},
		"exportDir":      map[string]any{"type": "string"},
		"timeout":        map[string]any{"type": "integer", "minimum": 0},
		"cameraInterval": map[string]any{"type": "integer", "minimum": 0},
		"cameraSource":   map[string]any{"type": "string"},
		"metricsAddr":    map[string]any{"type": "string"},
		"logFile":        map[string]any{"type": "string"},
		"debug":          map[string]any{"type": "boolean"},
		"jsonMode":       map[string]any{"type": "boolean"},
	},
}

// BaseURL returns the backend URL without a trailing slash.
func (c Config) BaseURL() string {
	base := strings.TrimSpace(c.BackendURL)
	if base == "" {
		base = DefaultBackendURL
	}
	return strings.TrimRight(base, "/")
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CameraInterval returns the delay between live detections.
func (c Config) CameraInterval() time.Duration {
	if c.CameraIntervalMs <= 0 {
		return defaultCameraInterval
	}
	return time.Duration(c.CameraIntervalMs) * time.Millisecond
}

// StateDirPath returns the directory used for durable client storage.
func (c Config) StateDirPath() string {
	if dir := strings.TrimSpace(c.StateDir); dir != "" {
		return dir
	}
	return defaultStateDir
}

// StorePath is the file backing the durable key/value storage.
func (c Config) StorePath() string {
	return filepath.Join(c.StateDirPath(), "storage.json")
}

// ChartsDirPath returns where statistics charts are written.
func (c Config) ChartsDirPath() string {
	if dir := strings.TrimSpace(c.ChartsDir); dir != "" {
		return dir
	}
	return filepath.Join(c.StateDirPath(), "charts")
}

// ExportDirPath returns where exported CSV files are saved.
func (c Config) ExportDirPath() string {
	if dir := strings.TrimSpace(c.ExportDir); dir != "" {
		return dir
	}
	return "."
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return filepath.Join(c.StateDirPath(), "escombro.log")
}

// Validate checks values that the schema cannot express.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return fmt.Errorf("invalid backendURL %q: %w", c.BackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backendURL %q: scheme must be http or https", c.BackendURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid backendURL %q: missing host", c.BackendURL)
	}
	return nil
}

// Load reads the application configuration from the specified path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("no configuration file found at %q", path)
		}
		return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	config.ConfigPath = path
	return config, nil
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := ValidateDocument(data); err != nil {
		return Config{}, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
	return config, nil
}

// ValidateDocument checks a raw configuration document against the config schema.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(configSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("config failed validation: %s", strings.Join(details, "; "))
}
