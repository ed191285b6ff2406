// Package config - YAML configuration of the lingolens binaries.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/lingolens/detector"
	"github.com/nvr-ai/lingolens/inference"
	"github.com/nvr-ai/lingolens/logger"
	"github.com/nvr-ai/lingolens/translate"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "lingolens.yaml"

// Translate configures label translation.
type Translate struct {
	// Online enables the Lingva API fallback.
	Online bool `yaml:"online"`
	// BaseURL is the Lingva API root.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds one Lingva request.
	Timeout time.Duration `yaml:"timeout"`
	// DictionaryPath is the offline label dictionary. Empty disables it.
	DictionaryPath string `yaml:"dictionary_path"`
	// DefaultLanguage is used when a request names no language.
	DefaultLanguage string `yaml:"default_language"`
}

// Cache configures the Redis translation cache.
type Cache struct {
	// Addr is the Redis address. Empty disables the cache.
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	TTL       time.Duration `yaml:"ttl"`
	Namespace string        `yaml:"namespace"`
}

// Enabled reports whether a Redis address is configured.
func (c Cache) Enabled() bool {
	return c.Addr != ""
}

// Server configures the HTTP service.
type Server struct {
	Addr string `yaml:"addr"`
	// MaxUploadBytes caps the size of an uploaded image.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// ProcessSampleInterval is how often the process gauges are refreshed. Zero disables sampling.
	ProcessSampleInterval time.Duration `yaml:"process_sample_interval"`
}

// Log configures the logger.
type Log struct {
	Mode logger.Mode `yaml:"mode"`
}

// Config is the root of lingolens.yaml.
type Config struct {
	Detector  detector.Config  `yaml:"detector"`
	Inference inference.Config `yaml:"inference"`
	Translate Translate        `yaml:"translate"`
	Cache     Cache            `yaml:"cache"`
	Server    Server           `yaml:"server"`
	Log       Log              `yaml:"log"`
}

// Default returns the configuration used for keys missing from the file.
func Default() Config {
	return Config{
		Detector:  detector.DefaultConfig(),
		Inference: inference.DefaultConfig(),
		Translate: Translate{
			Online:          true,
			BaseURL:         translate.DefaultBaseURL,
			Timeout:         translate.DefaultTimeout,
			DictionaryPath:  "assets/mscoco_dict.json",
			DefaultLanguage: "es",
		},
		Cache: Cache{
			TTL:       translate.DefaultCacheTTL,
			Namespace: translate.DefaultCacheNamespace,
		},
		Server: Server{
			Addr:                  ":8080",
			MaxUploadBytes:        10 << 20,
			ProcessSampleInterval: 15 * time.Second,
		},
		Log: Log{Mode: logger.ModeProduction},
	}
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration file at path.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - Config: The defaults overlaid with the file.
//   - error: An error if the file cannot be read, parsed or validated.
//
// Example Usage:
// ```go
//
//	cfg, err := config.Load("lingolens.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// ```
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(data)
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if err := c.Inference.Validate(); err != nil {
		return errors.Wrap(err, "inference")
	}
	if c.Translate.Timeout < 0 {
		return errors.New("translate: timeout must not be negative")
	}
	if c.Translate.DefaultLanguage == "" {
		return errors.New("translate: default_language is required")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache: ttl must not be negative")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.Errorf("server: max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	switch c.Log.Mode {
	case "", logger.ModeProduction, logger.ModeDevelopment:
	default:
		return errors.Errorf("log: unknown mode %q", c.Log.Mode)
	}
	return nil
}
