// Package config loads settings for the raw clustering-z stage.
// It uses koanf to read an optional YAML file and lets CLUSTERZ_* environment
// variables override individual keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Noofbiz/clusterz/cosmology"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is prepended to the upper-cased key to form the override
// variable, e.g. CLUSTERZ_MAX_SEP_MPC or CLUSTERZ_COSMOLOGY_H0.
const EnvPrefix = "CLUSTERZ_"

// Cosmology selects the flat ΛCDM parameters used for comoving distances.
type Cosmology struct {
	H0    float64 `koanf:"h0"`
	Om0   float64 `koanf:"om0"`
	Tcmb0 float64 `koanf:"tcmb0"`
	// Neutrino masses in eV; empty for massless, otherwise three entries.
	MNu []float64 `koanf:"m_nu"`
}

// Config holds all stage settings.
type Config struct {
	// Separation window, comoving Mpc
	MinSepMpc float64 `koanf:"min_sep_mpc"`
	MaxSepMpc float64 `koanf:"max_sep_mpc"`

	// Execution
	Seed             int64         `koanf:"seed"`
	Workers          int           `koanf:"workers"`
	ProgressInterval time.Duration `koanf:"progress_interval"`

	// Inputs (file paths or glob patterns)
	ReferenceCatalog string `koanf:"reference_catalog"`
	UnknownCatalog   string `koanf:"unknown_catalog"`
	RandomCatalog    string `koanf:"random_catalog"`

	// Outputs; Plot and MetricsTextfile are optional
	Output          string `koanf:"output"`
	Plot            string `koanf:"plot"`
	MetricsTextfile string `koanf:"metrics_textfile"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	Cosmology         Cosmology `koanf:"cosmology"`
	DistanceCacheSize int       `koanf:"distance_cache_size"`
}

// Configuration validation errors.
var (
	ErrMissingReferenceCatalog = errors.New("reference_catalog is required")
	ErrMissingUnknownCatalog   = errors.New("unknown_catalog is required")
	ErrMissingRandomCatalog    = errors.New("random_catalog is required")
	ErrMissingOutput           = errors.New("output is required")
	ErrInvalidWindow           = errors.New("separation window must satisfy 0 < min_sep_mpc < max_sep_mpc")
	ErrInvalidWorkers          = errors.New("workers must be >= 0")
	ErrInvalidLogLevel         = errors.New("log_level must be one of debug, info, warn, error")
	ErrInvalidLogFormat        = errors.New("log_format must be text or json")
	ErrInvalidCosmology        = errors.New("cosmology requires h0 > 0 and 0 <= om0 <= 1")
	ErrInvalidNeutrinoMasses   = errors.New("cosmology.m_nu must be empty or three non-negative masses")
	ErrInvalidNumber           = errors.New("invalid numeric value")
)

// Defaults.
const (
	DefaultMinSepMpc         = 0.1
	DefaultMaxSepMpc         = 1.0
	DefaultSeed              = 1
	DefaultProgressInterval  = 5 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultH0                = cosmology.Planck15H0
	DefaultOm0               = cosmology.Planck15Om0
	DefaultTcmb0             = cosmology.Planck15Tcmb0
	DefaultDistanceCacheSize = cosmology.DefaultCacheSize
)

// DefaultMNu returns the Planck 2015 neutrino masses.
func DefaultMNu() []float64 {
	return append([]float64(nil), cosmology.Planck15MNu...)
}

// Default returns a Config filled with defaults and no catalog paths.
func Default() *Config {
	return &Config{
		MinSepMpc:         DefaultMinSepMpc,
		MaxSepMpc:         DefaultMaxSepMpc,
		Seed:              DefaultSeed,
		ProgressInterval:  DefaultProgressInterval,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		Cosmology:         Cosmology{H0: DefaultH0, Om0: DefaultOm0, Tcmb0: DefaultTcmb0, MNu: DefaultMNu()},
		DistanceCacheSize: DefaultDistanceCacheSize,
	}
}

// Load reads an optional YAML file, applies environment overrides and
// validates the result. Environment variables take precedence over file
// values, which take precedence over defaults. The returned slice holds every
// problem found; it is empty when the config is usable. A file that cannot be
// read yields a nil Config.
func Load(path string) (*Config, []error) {
	cfg, errs := Read(path)
	if cfg == nil {
		return nil, errs
	}
	return cfg, append(errs, cfg.Validate()...)
}

// Read is Load without the final Validate, for callers that layer further
// overrides (CLI flags) on top before validating. Only decode and
// environment parse errors are returned.
func Read(path string) (*Config, []error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", path, err)}
		}
	}

	cfg := Default()
	// Lists decode element-wise over an existing slice, so m_nu starts empty.
	cfg.Cosmology.MNu = nil
	// Keys absent from the file keep their defaults.
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, []error{fmt.Errorf("failed to decode config: %w", err)}
	}
	if !k.Exists("cosmology.m_nu") {
		cfg.Cosmology.MNu = DefaultMNu()
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envFloat("min_sep_mpc", &cfg.MinSepMpc))
	collect(envFloat("max_sep_mpc", &cfg.MaxSepMpc))
	collect(envInt64("seed", &cfg.Seed))
	collect(envInt("workers", &cfg.Workers))
	collect(envDuration("progress_interval", &cfg.ProgressInterval))
	envString("reference_catalog", &cfg.ReferenceCatalog)
	envString("unknown_catalog", &cfg.UnknownCatalog)
	envString("random_catalog", &cfg.RandomCatalog)
	envString("output", &cfg.Output)
	envString("plot", &cfg.Plot)
	envString("metrics_textfile", &cfg.MetricsTextfile)
	envString("log_level", &cfg.LogLevel)
	envString("log_format", &cfg.LogFormat)
	collect(envFloat("cosmology.h0", &cfg.Cosmology.H0))
	collect(envFloat("cosmology.om0", &cfg.Cosmology.Om0))
	collect(envFloat("cosmology.tcmb0", &cfg.Cosmology.Tcmb0))
	collect(envFloatList("cosmology.m_nu", &cfg.Cosmology.MNu))
	collect(envInt("distance_cache_size", &cfg.DistanceCacheSize))

	return cfg, errs
}

// EnvKey returns the environment variable that overrides a config key.
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvKey(key)); val != "" {
		*dst = val
	}
}

func envFloat(key string, dst *float64) error {
	val := os.Getenv(EnvKey(key))
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("%s must be a valid float: %w", EnvKey(key), ErrInvalidNumber)
	}
	*dst = f
	return nil
}

// envFloatList parses a comma-separated list. "none" clears it.
func envFloatList(key string, dst *[]float64) error {
	val := strings.TrimSpace(os.Getenv(EnvKey(key)))
	if val == "" {
		return nil
	}
	if strings.EqualFold(val, "none") {
		*dst = nil
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("%s must be a comma-separated list of floats: %w", EnvKey(key), ErrInvalidNumber)
		}
		out[i] = f
	}
	*dst = out
	return nil
}

func envInt(key string, dst *int) error {
	val := os.Getenv(EnvKey(key))
	if val == "" {
		return nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s must be a valid integer: %w", EnvKey(key), ErrInvalidNumber)
	}
	*dst = i
	return nil
}

func envInt64(key string, dst *int64) error {
	val := os.Getenv(EnvKey(key))
	if val == "" {
		return nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("%s must be a valid integer: %w", EnvKey(key), ErrInvalidNumber)
	}
	*dst = i
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	val := os.Getenv(EnvKey(key))
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration: %w", EnvKey(key), ErrInvalidNumber)
	}
	*dst = d
	return nil
}

// Validate checks required paths and value ranges.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.ReferenceCatalog == "" {
		errs = append(errs, ErrMissingReferenceCatalog)
	}
	if c.UnknownCatalog == "" {
		errs = append(errs, ErrMissingUnknownCatalog)
	}
	if c.RandomCatalog == "" {
		errs = append(errs, ErrMissingRandomCatalog)
	}
	if c.Output == "" {
		errs = append(errs, ErrMissingOutput)
	}
	if !(c.MinSepMpc > 0) || !(c.MaxSepMpc > c.MinSepMpc) {
		errs = append(errs, fmt.Errorf("%w (got %g, %g)", ErrInvalidWindow, c.MinSepMpc, c.MaxSepMpc))
	}
	if c.Workers < 0 {
		errs = append(errs, ErrInvalidWorkers)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ErrInvalidLogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, ErrInvalidLogFormat)
	}
	if !(c.Cosmology.H0 > 0) || c.Cosmology.Om0 < 0 || c.Cosmology.Om0 > 1 {
		errs = append(errs, ErrInvalidCosmology)
	}
	if n := len(c.Cosmology.MNu); n != 0 && n != cosmology.NeutrinoSpecies {
		errs = append(errs, ErrInvalidNeutrinoMasses)
	} else {
		for _, m := range c.Cosmology.MNu {
			if !(m >= 0) {
				errs = append(errs, ErrInvalidNeutrinoMasses)
				break
			}
		}
	}

	return errs
}

// LogSummary returns the settings as strings for a startup log line.
func (c *Config) LogSummary() map[string]string {
	orUnset := func(s string) string {
		if s == "" {
			return "<not set>"
		}
		return s
	}
	return map[string]string{
		"min_sep_mpc":         strconv.FormatFloat(c.MinSepMpc, 'g', -1, 64),
		"max_sep_mpc":         strconv.FormatFloat(c.MaxSepMpc, 'g', -1, 64),
		"seed":                strconv.FormatInt(c.Seed, 10),
		"workers":             strconv.Itoa(c.Workers),
		"progress_interval":   c.ProgressInterval.String(),
		"reference_catalog":   orUnset(c.ReferenceCatalog),
		"unknown_catalog":     orUnset(c.UnknownCatalog),
		"random_catalog":      orUnset(c.RandomCatalog),
		"output":              orUnset(c.Output),
		"plot":                orUnset(c.Plot),
		"metrics_textfile":    orUnset(c.MetricsTextfile),
		"log_level":           c.LogLevel,
		"log_format":          c.LogFormat,
		"cosmology":           fmt.Sprintf("H0=%g Om0=%g Tcmb0=%g m_nu=%v", c.Cosmology.H0, c.Cosmology.Om0, c.Cosmology.Tcmb0, c.Cosmology.MNu),
		"distance_cache_size": strconv.Itoa(c.DistanceCacheSize),
	}
}
