package tandem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tandem-cache/tandem/store/memory"
	redisstore "github.com/tandem-cache/tandem/store/redis"
)

// Config is the flat, file/env-friendly configuration surface. Durations are
// plain seconds so YAML, JSON and env values stay unit-free.
type Config struct {
	RedisURL             string `koanf:"redis_url"`
	KeyPrefix            string `koanf:"key_prefix"`
	DefaultTTLSeconds    int    `koanf:"default_ttl_seconds"`
	FailureThreshold     int    `koanf:"failure_threshold"`
	ProbeIntervalSeconds int    `koanf:"probe_interval_seconds"`
	ProbeTimeoutSeconds  int    `koanf:"probe_timeout_seconds"`
	LocalCapacity        int    `koanf:"local_capacity"`
	Disabled             bool   `koanf:"disabled"`
}

// DefaultConfig carries the documented defaults: a local redis, hour-long
// entries, three strikes before Unavailable, five-second probes.
func DefaultConfig() Config {
	return Config{
		RedisURL:             "redis://localhost:6379/0",
		DefaultTTLSeconds:    3600,
		FailureThreshold:     3,
		ProbeIntervalSeconds: 5,
		ProbeTimeoutSeconds:  2,
		LocalCapacity:        1000,
	}
}

// FromEnv returns DefaultConfig overridden by environment variables:
// REDIS_URL, CACHE_KEY_PREFIX, CACHE_DEFAULT_TTL_SECONDS,
// CACHE_FAILURE_THRESHOLD, CACHE_PROBE_INTERVAL_SECONDS,
// CACHE_PROBE_TIMEOUT_SECONDS, CACHE_LOCAL_CAPACITY, CACHE_DISABLED.
// Malformed values keep their defaults and are reported through the joined
// error; the returned Config is always usable.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	if v, ok := os.LookupEnv("REDIS_URL"); ok {
		cfg.RedisURL = v
	}
	if v, ok := os.LookupEnv("CACHE_KEY_PREFIX"); ok {
		cfg.KeyPrefix = v
	}
	envInt("CACHE_DEFAULT_TTL_SECONDS", &cfg.DefaultTTLSeconds, &errs)
	envInt("CACHE_FAILURE_THRESHOLD", &cfg.FailureThreshold, &errs)
	envInt("CACHE_PROBE_INTERVAL_SECONDS", &cfg.ProbeIntervalSeconds, &errs)
	envInt("CACHE_PROBE_TIMEOUT_SECONDS", &cfg.ProbeTimeoutSeconds, &errs)
	envInt("CACHE_LOCAL_CAPACITY", &cfg.LocalCapacity, &errs)
	if v, ok := os.LookupEnv("CACHE_DISABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, &ConfigError{Field: "CACHE_DISABLED", Err: err})
		} else {
			cfg.Disabled = b
		}
	}
	return cfg, errors.Join(errs...)
}

func envInt(name string, dst *int, errs *[]error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, &ConfigError{Field: name, Err: err})
		return
	}
	*dst = n
}

// LoadFile reads a JSON or YAML file (picked by extension) over DefaultConfig.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = kjson.Parser()
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	default:
		return cfg, &ConfigError{Field: "path", Err: fmt.Errorf("unsupported config extension %q", filepath.Ext(path))}
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), parser); err != nil {
		return cfg, &ConfigError{Field: "path", Err: err}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, &ConfigError{Field: "path", Err: err}
	}
	return cfg, nil
}

// FromConfig assembles a cache from cfg layered under base - explicit fields
// in base win. Configuration problems (an unparseable redis URL, negative
// values) come back as ConfigErrors NEXT TO a usable local-only cache, so a
// bad deploy config degrades service instead of failing startup. The cache is
// nil only when base itself is invalid.
func FromConfig(cfg Config, base Options) (Cache, error) {
	var errs []error
	clamp := func(field string, v *int) {
		if *v < 0 {
			errs = append(errs, &ConfigError{Field: field, Err: errors.New("must not be negative")})
			*v = 0
		}
	}
	clamp("default_ttl_seconds", &cfg.DefaultTTLSeconds)
	clamp("failure_threshold", &cfg.FailureThreshold)
	clamp("probe_interval_seconds", &cfg.ProbeIntervalSeconds)
	clamp("probe_timeout_seconds", &cfg.ProbeTimeoutSeconds)

	opts := base
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = cfg.KeyPrefix
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = time.Duration(cfg.DefaultTTLSeconds) * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = cfg.FailureThreshold
	}
	if opts.ProbeInterval == 0 {
		opts.ProbeInterval = time.Duration(cfg.ProbeIntervalSeconds) * time.Second
	}
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = time.Duration(cfg.ProbeTimeoutSeconds) * time.Second
	}
	if opts.Local == nil {
		opts.Local = memory.New(memory.Config{Capacity: cfg.LocalCapacity})
	}
	opts.Disabled = opts.Disabled || cfg.Disabled

	// An empty RedisURL is the explicit way to run local-only.
	if opts.Remote == nil && cfg.RedisURL != "" && !opts.Disabled {
		ropts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			errs = append(errs, &ConfigError{Field: "redis_url", Err: err})
		} else {
			remote, err := redisstore.New(redisstore.Config{
				Client:      goredis.NewClient(ropts),
				CloseClient: true,
			})
			if err != nil {
				errs = append(errs, &ConfigError{Field: "redis_url", Err: err})
			} else {
				opts.Remote = remote
			}
		}
	}

	cache, err := New(opts)
	if err != nil {
		return nil, errors.Join(append(errs, err)...)
	}
	return cache, errors.Join(errs...)
}
