package geotag

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	geocoderURL      string
	geocoderKey      string
	geocoderTimeout  time.Duration
	geocoderAttempts int
	courtesyDelay    time.Duration

	nerEnabled  bool
	nerModel    string
	nerModelDir string
	nerTargets  []string

	addressEnabled  bool
	addressKey      string
	addressFallback bool

	cloudEnabled  bool
	cloudKey      string
	cloudEndpoint string

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	isolation        bool
	nestedTagRemoval bool

	logger *zap.Logger
}

// WithGeocoderKey sets the geocoding service API key. Without a key every
// entity resolves to sentinel coordinates.
func WithGeocoderKey(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.geocoderKey = apiKey
	})
}

// WithGeocoderURL overrides the geocoding endpoint. Defaults to the Esri
// World Geocoder.
func WithGeocoderURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.geocoderURL = url
	})
}

// WithCourtesyDelay sets the pause after each geocoding call.
// Defaults to 500ms; zero disables the delay.
func WithCourtesyDelay(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.courtesyDelay = d
	})
}

// WithNER enables the in-process statistical recognizer. An empty model
// or modelDir keeps the defaults (distilbert NER under ./models).
func WithNER(model, modelDir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.nerEnabled = true
		if model != "" {
			c.nerModel = model
		}
		if modelDir != "" {
			c.nerModelDir = modelDir
		}
	})
}

// WithNERTargets overrides the entity labels the statistical recognizer tags.
func WithNERTargets(labels ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.nerTargets = labels
	})
}

// WithAddressRecognizer enables the address recognition pass. An empty
// apiKey relies on the pattern fallback alone.
func WithAddressRecognizer(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addressEnabled = true
		c.addressKey = apiKey
	})
}

// WithoutAddressFallback disables the pattern fallback when the address
// service is unavailable.
func WithoutAddressFallback() Option {
	return optionFunc(func(c *clientConfig) {
		c.addressFallback = false
	})
}

// WithCloudRecognizer enables the cloud entity-analysis pass.
func WithCloudRecognizer(apiKey, endpoint string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cloudEnabled = true
		c.cloudKey = apiKey
		c.cloudEndpoint = endpoint
	})
}

// WithRedisCache memoizes successful geocode lookups in Redis.
func WithRedisCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithSequentialAnnotation disables placeholder isolation between
// recognizer passes. Later passes then see earlier tags and nesting may
// appear; combine with nested-tag removal left enabled.
func WithSequentialAnnotation() Option {
	return optionFunc(func(c *clientConfig) {
		c.isolation = false
	})
}

// WithoutNestedTagRemoval keeps nested tags produced by sequential passes.
func WithoutNestedTagRemoval() Option {
	return optionFunc(func(c *clientConfig) {
		c.nestedTagRemoval = false
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = logger
	})
}
