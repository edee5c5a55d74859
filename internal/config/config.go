// Package config loads Aegis's JSON configuration file and fills in
// defaults for anything left unset, mirroring the teacher's
// Load(path)-plus-post-unmarshal-defaults pattern.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

// Config holds all daemon configuration.
type Config struct {
	API        APIConfig        `json:"api"`
	Proxy      ProxyConfig      `json:"proxy"`
	Storage    StorageConfig    `json:"storage"`
	Extractor  ExtractorConfig  `json:"extractor"`
	Classifier ClassifierConfig `json:"classifier"`
	Rules      RulesConfig      `json:"rules"`
	Profiles   ProfilesConfig   `json:"profiles"`
	Registry   RegistryConfig   `json:"registry"`
	Browser    BrowserConfig    `json:"browser"`
	Session    SessionConfig    `json:"session"`
	Logging    LoggingConfig    `json:"logging"`
}

// APIConfig is the Decision API's listen and login-throttling settings.
type APIConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	LoginRateLimit    int    `json:"login_rate_limit_per_min"`
	RequestTimeoutMs  int    `json:"request_timeout_ms"`
}

// ProxyConfig is the MITM proxy's listen address and the Warn-folding
// policy spec.md's Open Question #1 leaves configurable.
type ProxyConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	WarnMode       string `json:"warn_mode"` // "allow" | "block"
	ConnectTimeout int    `json:"connect_timeout_ms"`
}

// StorageConfig locates the SQLite database and the CA's key material.
type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

// ExtractorConfig bounds the Payload Extractor's body handling.
type ExtractorConfig struct {
	MaxBodyBytes   int `json:"max_body_bytes"`
	StreamBufBytes int `json:"stream_buffer_bytes"`
	StreamBufMs    int `json:"stream_buffer_timeout_ms"`
}

// ClassifierConfig names the optional Tier-2 ML model file. Absent
// means Tier 2 is silently skipped, per spec.md §4.4. RulePackPaths
// names extra Tier-1 community rule packs (.json/.csv, or a plain word
// list otherwise) to load on top of the bundled rule set, letting a
// deployment layer in the full upstream safety databases without a
// rebuild.
type ClassifierConfig struct {
	MLModelPath       string   `json:"ml_model_path"`
	ShortCircuitScore float64  `json:"short_circuit_confidence"`
	RulePackPaths     []string `json:"rule_pack_paths"`
}

// RulesConfig configures the Rule Engine's caller-facing policy knobs.
type RulesConfig struct {
	// ProxyWarnMode duplicates ProxyConfig.WarnMode as the canonical
	// config key named in SPEC_FULL.md; Proxy.WarnMode is kept for
	// back-compat with an older key name some install scripts use.
	ProxyWarnMode string `json:"proxy_warn_mode"`
}

// ProfilesConfig configures the Profile Manager's fallback policy.
// ForbidUnrestricted inverts spec.md's default-true
// "profiles.default_unrestricted" knob so the zero value (false)
// matches that default without needing a pointer or a sentinel.
type ProfilesConfig struct {
	ForbidUnrestricted bool `json:"forbid_unrestricted"`
}

// RegistryConfig gates the Site Registry's optional remote feed
// (spec.md's Open Question #3): disabled by default, and a no-op
// without a feed URL even when enabled.
type RegistryConfig struct {
	RemoteEnabled bool   `json:"remote_enabled"`
	RemoteFeedURL string `json:"remote_feed_url"`
	PollSeconds   int    `json:"poll_interval_seconds"`
}

// BrowserConfig governs the page-context interceptor's fail-open vs
// fail-closed behavior when the Decision API is unreachable.
type BrowserConfig struct {
	FailMode        string `json:"fail_mode"` // "open" | "closed"
	ResponseTimeout int    `json:"response_timeout_ms"`
}

// SessionConfig is the dashboard session's sliding TTL and the sweep
// cadence that expires stale sessions.
type SessionConfig struct {
	TTLSeconds          int `json:"ttl_seconds"`
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

// LoggingConfig controls the slog handler's verbosity and file rotation.
type LoggingConfig struct {
	Level          string `json:"level"`
	RotationSizeMB int    `json:"rotation_size_mb"`
}

// Load reads configuration from a JSON file and fills in defaults for
// anything the file left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultDataDir returns the platform data directory spec.md §6
// names: Windows %APPDATA%\aegis\data, macOS ~/Library/Application
// Support/aegis/data, Linux ~/.local/share/aegis/data. Falls back to
// "./data" if the home directory can't be resolved.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "aegis", "data")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "aegis", "data")
		}
	default:
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share", "aegis", "data")
		}
	}
	return "./data"
}

func applyDefaults(cfg *Config) {
	if cfg.API.Host == "" {
		cfg.API.Host = "127.0.0.1"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8765
	}
	if cfg.API.LoginRateLimit == 0 {
		cfg.API.LoginRateLimit = 5
	}
	if cfg.API.RequestTimeoutMs == 0 {
		cfg.API.RequestTimeoutMs = 5000
	}

	if cfg.Proxy.Host == "" {
		cfg.Proxy.Host = "127.0.0.1"
	}
	if cfg.Proxy.Port == 0 {
		cfg.Proxy.Port = 8766
	}
	if cfg.Proxy.WarnMode == "" {
		cfg.Proxy.WarnMode = "allow"
	}
	if cfg.Proxy.ConnectTimeout == 0 {
		cfg.Proxy.ConnectTimeout = 10000
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = DefaultDataDir()
	}

	if cfg.Extractor.MaxBodyBytes == 0 {
		cfg.Extractor.MaxBodyBytes = 1 << 20
	}
	if cfg.Extractor.StreamBufBytes == 0 {
		cfg.Extractor.StreamBufBytes = 64 << 10
	}
	if cfg.Extractor.StreamBufMs == 0 {
		cfg.Extractor.StreamBufMs = 2000
	}

	if cfg.Classifier.ShortCircuitScore == 0 {
		cfg.Classifier.ShortCircuitScore = 0.9
	}

	if cfg.Rules.ProxyWarnMode == "" {
		cfg.Rules.ProxyWarnMode = cfg.Proxy.WarnMode
	}

	if cfg.Registry.PollSeconds == 0 {
		cfg.Registry.PollSeconds = 300
	}

	if cfg.Browser.FailMode == "" {
		cfg.Browser.FailMode = "closed"
	}
	if cfg.Browser.ResponseTimeout == 0 {
		cfg.Browser.ResponseTimeout = 10000
	}

	if cfg.Session.TTLSeconds == 0 {
		cfg.Session.TTLSeconds = 900
	}
	if cfg.Session.SweepIntervalSeconds == 0 {
		cfg.Session.SweepIntervalSeconds = 60
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.RotationSizeMB == 0 {
		cfg.Logging.RotationSizeMB = 50
	}
}
