package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "responder"

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/responder/config.toml
//  2. ~/.config/responder/config.toml
//
// If no file exists, returns DefaultConfig() with env overrides applied.
func Load() (*Config, error) {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, cfg.Validate()
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	defer f.Close()
	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader reads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	cacheDir := filepath.Join(xdgCacheHome(home), appName)

	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			LogFile:  filepath.Join(cacheDir, appName+".log"),
			CacheDir: cacheDir,
		},
		Events: EventsConfig{
			PollInterval:   Duration{30 * time.Second},
			RequestTimeout: Duration{15 * time.Second},
			OfflineTTL:     Duration{10 * time.Minute},
		},
		Update: UpdateConfig{
			Enabled:       true,
			CheckInterval: Duration{time.Minute},
		},
		UI: UIConfig{
			ToastDuration: Duration{2 * time.Second},
			ToastPosition: ToastTop,
			Mouse:         true,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("general.log_level: unknown level %q", c.General.LogLevel))
	}
	if c.Events.BaseURL != "" {
		if err := checkURL(c.Events.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("events.base_url: %w", err))
		}
	}
	if c.Events.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("events.poll_interval must be positive"))
	}
	if c.Update.CheckInterval.Duration <= 0 {
		errs = append(errs, errors.New("update.check_interval must be positive"))
	}
	if c.UI.ToastDuration.Duration <= 0 {
		errs = append(errs, errors.New("ui.toast_duration must be positive"))
	}
	switch c.UI.ToastPosition {
	case ToastTop, ToastBottom:
	default:
		errs = append(errs, fmt.Errorf("ui.toast_position: want %q or %q, got %q", ToastTop, ToastBottom, c.UI.ToastPosition))
	}
	return errors.Join(errs...)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RESPONDER_API_URL"); v != "" {
		cfg.Events.BaseURL = v
	}
	if v := os.Getenv("RESPONDER_MANIFEST_URL"); v != "" {
		cfg.Update.ManifestURL = v
	}
	if v := os.Getenv("RESPONDER_UPDATES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Update.Enabled = b
		}
	}
	if v := os.Getenv("RESPONDER_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, appName, "config.toml"))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, appName, "config.toml"))
	}

	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgCacheHome returns XDG_CACHE_HOME or ~/.cache as fallback.
func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}
