package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is resolved once at startup and injected into the components that
// need it. Nothing queries the environment at call time.
type Config struct {
	APIBaseURL      string
	APIToken        string
	HTTPTimeout     time.Duration
	RefreshMargin   time.Duration
	ProbeURL        string
	ProbeInterval   time.Duration
	StationAddr     string
	EventID         string
	JaegerEndpoint  string
	FingerprintPath string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPTimeout:   10 * time.Second,
		RefreshMargin: 5 * time.Second,
		ProbeInterval: 30 * time.Second,
		StationAddr:   ":8090",
	}

	baseURL := os.Getenv("CHECKIN_API_URL")
	if baseURL == "" {
		return Config{}, fmt.Errorf("CHECKIN_API_URL environment variable is required")
	}
	cfg.APIBaseURL = strings.TrimRight(baseURL, "/")

	cfg.APIToken = os.Getenv("CHECKIN_API_TOKEN")
	cfg.EventID = os.Getenv("CHECKIN_EVENT_ID")
	cfg.JaegerEndpoint = os.Getenv("CHECKIN_JAEGER_ENDPOINT")

	if addr := os.Getenv("CHECKIN_STATION_ADDR"); addr != "" {
		cfg.StationAddr = addr
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv("CHECKIN_HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RefreshMargin, err = durationEnv("CHECKIN_REFRESH_MARGIN", cfg.RefreshMargin); err != nil {
		return Config{}, err
	}
	if cfg.ProbeInterval, err = durationEnv("CHECKIN_PROBE_INTERVAL", cfg.ProbeInterval); err != nil {
		return Config{}, err
	}

	cfg.ProbeURL = os.Getenv("CHECKIN_PROBE_URL")
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = cfg.APIBaseURL + "/health"
	}

	cfg.FingerprintPath = os.Getenv("CHECKIN_FINGERPRINT_PATH")
	if cfg.FingerprintPath == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = os.TempDir()
		}
		cfg.FingerprintPath = filepath.Join(configDir, "checkin", "install-id")
	}

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
