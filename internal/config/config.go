package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. VANISH_LOG_LEVEL.
const Prefix = "VANISH"

type Config struct {
	// App Settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// File System Paths
	ConfigDir        string `envconfig:"CONFIG_DIR"`
	CachePath        string `envconfig:"CACHE_PATH"`
	SnapshotPath     string `envconfig:"SNAPSHOT_PATH"`
	ProfileDir       string `envconfig:"PROFILE_DIR"`
	GeoIPPath        string `envconfig:"GEOIP_PATH"`
	ProbeHistoryPath string `envconfig:"PROBE_HISTORY_PATH"`
	MetricsTextfile  string `envconfig:"METRICS_TEXTFILE"`

	// Remote Sources
	StatusURL        string        `envconfig:"STATUS_URL" default:"https://www.ipvanish.com/api/servers.geojson"`
	ProfilesURL      string        `envconfig:"PROFILES_URL" default:"https://www.ipvanish.com/software/configs/configs.zip"`
	ProfileVendor    string        `envconfig:"PROFILE_VENDOR" default:"ipvanish"`
	CAFile           string        `envconfig:"CA_FILE"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	MaxDownloadBytes int64         `envconfig:"MAX_DOWNLOAD_BYTES" default:"67108864"`
	StatusMaxAge     time.Duration `envconfig:"STATUS_MAX_AGE" default:"0s"`

	// Network Logic
	ProbeMethod  string        `envconfig:"PROBE_METHOD" default:"ping"`
	ProbePort    int           `envconfig:"PROBE_PORT" default:"443"`
	ProbeTimeout time.Duration `envconfig:"PROBE_TIMEOUT" default:"1s"`
	ProbeWorkers int           `envconfig:"PROBE_WORKERS" default:"10"`
	ProbeRate    float64       `envconfig:"PROBE_RATE" default:"0"`

	// External Binaries
	PingPath    string `envconfig:"PING_PATH" default:"ping"`
	OpenVPNPath string `envconfig:"OPENVPN_PATH" default:"openvpn"`
	OpenVPNCA   string `envconfig:"OPENVPN_CA"`
}

// Load reads .env and processes environment variables, then fills in the
// paths derived from ConfigDir.
func Load() (*Config, error) {
	// Silently ignore if .env is missing (production might use real ENV vars)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	if err := cfg.derive(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) derive() error {
	c.ProbeMethod = strings.ToLower(c.ProbeMethod)
	if c.ConfigDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("configuration: locate config dir: %w", err)
		}
		c.ConfigDir = filepath.Join(base, "vanish")
	}
	if c.CachePath == "" {
		c.CachePath = filepath.Join(c.ConfigDir, "cache")
	}
	if c.SnapshotPath == "" {
		c.SnapshotPath = filepath.Join(c.ConfigDir, "servers.geojson")
	}
	if c.ProfileDir == "" {
		c.ProfileDir = filepath.Join(c.ConfigDir, "openvpn")
	}
	if c.OpenVPNCA == "" {
		c.OpenVPNCA = filepath.Join(c.ProfileDir, "ca."+c.ProfileVendor+".com.crt")
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.ProbeMethod {
	case "ping", "tcp":
	default:
		errs = append(errs, fmt.Errorf("PROBE_METHOD must be ping or tcp, got %q", c.ProbeMethod))
	}
	if c.ProbePort <= 0 || c.ProbePort > 65535 {
		errs = append(errs, fmt.Errorf("PROBE_PORT out of range: %d", c.ProbePort))
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PROBE_TIMEOUT must be positive, got %s", c.ProbeTimeout))
	}
	if c.ProbeWorkers <= 0 {
		errs = append(errs, fmt.Errorf("PROBE_WORKERS must be positive, got %d", c.ProbeWorkers))
	}
	if c.ProbeRate < 0 {
		errs = append(errs, fmt.Errorf("PROBE_RATE must not be negative, got %g", c.ProbeRate))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout))
	}
	if c.MaxDownloadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_DOWNLOAD_BYTES must be positive, got %d", c.MaxDownloadBytes))
	}
	if c.StatusMaxAge < 0 {
		errs = append(errs, fmt.Errorf("STATUS_MAX_AGE must not be negative, got %s", c.StatusMaxAge))
	}
	if c.ProfileVendor == "" {
		errs = append(errs, errors.New("PROFILE_VENDOR must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	return nil
}
