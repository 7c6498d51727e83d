package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recognizer names accepted in annotator.enabled, in any order.
const (
	RecognizerNER     = "ner"
	RecognizerAddress = "address"
	RecognizerCloud   = "cloud"
)

// Config holds the geotag pipeline configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Annotator AnnotatorConfig `yaml:"annotator"`
	NER       NERConfig       `yaml:"ner"`
	Address   AddressConfig   `yaml:"address"`
	Cloud     CloudConfig     `yaml:"cloud"`
	Geocoder  GeocoderConfig  `yaml:"geocoder"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AnnotatorConfig holds recognizer orchestration settings.
type AnnotatorConfig struct {
	// Enabled lists recognizer names in execution order: ner, address, cloud.
	Enabled []string `yaml:"enabled"`
	// PlaceholderIsolation substitutes already-tagged spans with opaque
	// tokens before each pass (default: true). When false the annotator
	// runs sequentially and nested tags may appear.
	PlaceholderIsolation *bool `yaml:"placeholder_isolation"`
	// NestedTagRemoval flattens nested geo tags after all passes (default: true).
	NestedTagRemoval *bool `yaml:"nested_tag_removal"`
}

// NERConfig holds settings for the in-process NER recognizer.
type NERConfig struct {
	Model          string   `yaml:"model"`           // HuggingFace model id (default: KnightsAnalytics/distilbert-NER)
	ModelDir       string   `yaml:"model_dir"`       // local download directory (default: ./models)
	TargetEntities []string `yaml:"target_entities"` // labels to tag (default: LOC)
}

// AddressConfig holds settings for the address-recognition service.
type AddressConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EnableFallback *bool  `yaml:"enable_fallback"` // regex fallback when the service is unavailable (default: true)
	TimeoutSec     int    `yaml:"timeout_sec"`
}

// CloudConfig holds settings for the cloud entity-analysis service.
type CloudConfig struct {
	APIKey              string   `yaml:"api_key"`
	Endpoint            string   `yaml:"endpoint"`
	TargetEntities      []string `yaml:"target_entities"`      // categories to keep (default: Location, Address)
	ConfidenceThreshold float64  `yaml:"confidence_threshold"` // default: 0.8
	TimeoutSec          int      `yaml:"timeout_sec"`
}

// GeocoderConfig holds settings for the geocoding service.
type GeocoderConfig struct {
	APIKey          string `yaml:"api_key"`
	URL             string `yaml:"url"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	MaxAttempts     int    `yaml:"max_attempts"`      // attempts per entity for transient failures (default: 2)
	CourtesyDelayMS int    `yaml:"courtesy_delay_ms"` // pause between successive calls (default: 500)
}

// CacheConfig holds the optional geocode memoization settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLHours         int      `yaml:"ttl_hours"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// DefaultGeocoderURL is the Esri World Geocoder endpoint. Public, not a secret.
const DefaultGeocoderURL = "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer/findAddressCandidates"

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values. Recoverable
// out-of-range values are substituted rather than rejected.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Batch rendering can block on per-entity geocoding, so the
		// write timeout is generous compared to a CRUD API.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Annotator.PlaceholderIsolation == nil {
		c.Annotator.PlaceholderIsolation = boolPtr(true)
	}
	if c.Annotator.NestedTagRemoval == nil {
		c.Annotator.NestedTagRemoval = boolPtr(true)
	}
	if c.NER.Model == "" {
		c.NER.Model = "KnightsAnalytics/distilbert-NER"
	}
	if c.NER.ModelDir == "" {
		c.NER.ModelDir = "./models"
	}
	if len(c.NER.TargetEntities) == 0 {
		c.NER.TargetEntities = []string{"LOC"}
	}
	if c.Address.BaseURL == "" {
		c.Address.BaseURL = "https://api.shipengine.com"
	}
	if c.Address.EnableFallback == nil {
		c.Address.EnableFallback = boolPtr(true)
	}
	if c.Address.TimeoutSec <= 0 {
		c.Address.TimeoutSec = 10
	}
	if len(c.Cloud.TargetEntities) == 0 {
		c.Cloud.TargetEntities = []string{"Location", "Address"}
	}
	if c.Cloud.ConfidenceThreshold <= 0 || c.Cloud.ConfidenceThreshold > 1 {
		c.Cloud.ConfidenceThreshold = 0.8
	}
	if c.Cloud.TimeoutSec <= 0 {
		c.Cloud.TimeoutSec = 30
	}
	if c.Geocoder.URL == "" {
		c.Geocoder.URL = DefaultGeocoderURL
	}
	if c.Geocoder.TimeoutSec <= 0 {
		c.Geocoder.TimeoutSec = 10
	}
	if c.Geocoder.MaxAttempts <= 0 {
		c.Geocoder.MaxAttempts = 2
	}
	if c.Geocoder.CourtesyDelayMS <= 0 {
		c.Geocoder.CourtesyDelayMS = 500
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "geotag:"
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness. Unknown recognizer
// names are not rejected here: the annotator skips them with a warning.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache.enabled is true")
	}
	return nil
}

// PlaceholderIsolationEnabled reports the effective isolation flag.
func (c *Config) PlaceholderIsolationEnabled() bool {
	return c.Annotator.PlaceholderIsolation == nil || *c.Annotator.PlaceholderIsolation
}

// NestedTagRemovalEnabled reports the effective nested-tag removal flag.
func (c *Config) NestedTagRemovalEnabled() bool {
	return c.Annotator.NestedTagRemoval == nil || *c.Annotator.NestedTagRemoval
}

// AddressFallbackEnabled reports the effective regex fallback flag.
func (c *Config) AddressFallbackEnabled() bool {
	return c.Address.EnableFallback == nil || *c.Address.EnableFallback
}

func boolPtr(b bool) *bool { return &b }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
