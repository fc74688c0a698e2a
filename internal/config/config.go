package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "ATTRITION_"

// Config captures the settings required to boot the attrition API.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Results ResultsConfig `yaml:"results"`
	Reports ReportsConfig `yaml:"reports"`
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
	Startup StartupConfig `yaml:"startup"`
}

// ServerConfig controls the HTTP, metrics and probe listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	ProbeAddress    string        `yaml:"probeAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`

	// HealthFailureStatus is returned by /health while the model or results
	// are not loaded.
	HealthFailureStatus int `yaml:"healthFailureStatus"`
}

// ModelConfig locates the serialised estimator.
type ModelConfig struct {
	Path    string `yaml:"path"`
	Type    string `yaml:"type"`
	Variant string `yaml:"variant"`
}

// ResultsConfig locates the training results document.
type ResultsConfig struct {
	Path string `yaml:"path"`
}

// ReportsConfig locates the pre-rendered image tree.
type ReportsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging and the optional rotating file sink.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig controls memoisation of prediction outcomes.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"`
	Size         int           `yaml:"size"`
	TTL          time.Duration `yaml:"ttl"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// StartupConfig controls how load failures are handled at boot.
type StartupConfig struct {
	FailFast bool `yaml:"failFast"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":5000",
			MetricsAddress:  ":2112",
			ProbeAddress:    ":50051",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			GracefulTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},

			HealthFailureStatus: 503,
		},
		Model: ModelConfig{
			Path:    "model/attrition_pipeline_minimal.json",
			Type:    "ultra_minimal",
			Variant: "minimal",
		},
		Results: ResultsConfig{Path: "model/hasil.json"},
		Reports: ReportsConfig{Path: "model/img"},
		Logging: LoggingConfig{Level: "info", JSON: false, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      CacheBackendMemory,
			Size:         1024,
			TTL:          10 * time.Minute,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Startup: StartupConfig{FailFast: true},
	}
}

func (c *Config) validate() error {
	if s := c.Server.HealthFailureStatus; s < 200 || s > 599 {
		return fmt.Errorf("server.healthFailureStatus must be an HTTP status, got %d", s)
	}
	if !c.Cache.Enabled {
		return nil
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
		if c.Cache.Size <= 0 {
			return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
		}
	case CacheBackendRedis:
		if c.Cache.Addr == "" {
			return errors.New("cache.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// MissingPaths lists the configured artifact paths that do not exist, one
// "name: path" entry each.
func (c *Config) MissingPaths() []string {
	paths := []struct{ name, path string }{
		{"model", c.Model.Path},
		{"results", c.Results.Path},
		{"reports", c.Reports.Path},
	}
	var missing []string
	for _, p := range paths {
		if p.path == "" {
			missing = append(missing, p.name+": (not configured)")
			continue
		}
		if _, err := os.Stat(p.path); err != nil {
			missing = append(missing, p.name+": "+p.path)
		}
	}
	return missing
}

func applyEnvOverrides(cfg *Config) {
	if v := env("SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	host, port := os.Getenv("HOST"), os.Getenv("PORT")
	if host != "" || port != "" {
		cfg.Server.Address = mergeHostPort(cfg.Server.Address, host, port)
	}
	if v := env("METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := env("PROBE_ADDRESS"); v != "" {
		cfg.Server.ProbeAddress = v
	}
	durationEnv("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	durationEnv("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	durationEnv("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	durationEnv("GRACEFUL_TIMEOUT", &cfg.Server.GracefulTimeout)
	if v := env("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	intEnv("HEALTH_FAILURE_STATUS", &cfg.Server.HealthFailureStatus)
	if v := env("MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := env("RESULTS_PATH"); v != "" {
		cfg.Results.Path = v
	}
	if v := env("REPORTS_PATH"); v != "" {
		cfg.Reports.Path = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	if v := env("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	boolEnv("CACHE_ENABLED", &cfg.Cache.Enabled)
	if v := env("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	intEnv("CACHE_SIZE", &cfg.Cache.Size)
	durationEnv("CACHE_TTL", &cfg.Cache.TTL)
	if v := env("CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := env("CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := env("CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	intEnv("CACHE_DB", &cfg.Cache.DB)
	boolEnv("CACHE_TLS", &cfg.Cache.TLS)
	durationEnv("CACHE_DIAL_TIMEOUT", &cfg.Cache.DialTimeout)
	durationEnv("CACHE_READ_TIMEOUT", &cfg.Cache.ReadTimeout)
	durationEnv("CACHE_WRITE_TIMEOUT", &cfg.Cache.WriteTimeout)
	intEnv("CACHE_MAX_RETRIES", &cfg.Cache.MaxRetries)
	boolEnv("STARTUP_FAIL_FAST", &cfg.Startup.FailFast)
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func boolEnv(name string, dst *bool) {
	if v := env(name); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func intEnv(name string, dst *int) {
	if v := env(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func durationEnv(name string, dst *time.Duration) {
	if v := env(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// mergeHostPort replaces whichever of host or port is set in addr.
func mergeHostPort(addr, host, port string) string {
	curHost, curPort, err := net.SplitHostPort(addr)
	if err != nil {
		curHost, curPort = "", "5000"
	}
	if host != "" {
		curHost = host
	}
	if port != "" {
		curPort = port
	}
	return net.JoinHostPort(curHost, curPort)
}
