package config

// Config is the top-level configuration, decoded from config.toml.
type Config struct {
	General GeneralConfig `toml:"general"`
	Events  EventsConfig  `toml:"events"`
	Update  UpdateConfig  `toml:"update"`
	UI      UIConfig      `toml:"ui"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	LogLevel string `toml:"log_level"`
	// LogFile receives logs while the TUI owns the terminal.
	LogFile  string `toml:"log_file"`
	CacheDir string `toml:"cache_dir"`
}

// EventsConfig points the client at the emergency-event API.
type EventsConfig struct {
	BaseURL        string   `toml:"base_url"`
	PollInterval   Duration `toml:"poll_interval"`
	RequestTimeout Duration `toml:"request_timeout"`
	// OfflineTTL is how long a cached copy counts as fresh.
	OfflineTTL Duration `toml:"offline_ttl"`
}

// UpdateConfig controls self-update checks.
type UpdateConfig struct {
	Enabled       bool     `toml:"enabled"`
	ManifestURL   string   `toml:"manifest_url"`
	CheckInterval Duration `toml:"check_interval"`
	// Version overrides the build version, mostly for testing upgrades.
	Version string `toml:"version"`
}

// UIConfig tunes the home screen.
type UIConfig struct {
	ToastDuration Duration `toml:"toast_duration"`
	ToastPosition string   `toml:"toast_position"`
	Mouse         bool     `toml:"mouse"`
}

// Toast positions.
const (
	ToastTop    = "top"
	ToastBottom = "bottom"
)
