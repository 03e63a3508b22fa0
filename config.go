package chordlet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	defaults "github.com/Paranoid-AF/chordlet/default"
)

// Config represents the user's chordlet configuration.
type Config struct {
	Version     int               `toml:"version" json:"version" yaml:"version"`
	Service     ServiceConfig     `toml:"service" json:"service" yaml:"service"`
	Input       InputConfig       `toml:"input" json:"input" yaml:"input"`
	Suggestions SuggestionsConfig `toml:"suggestions" json:"suggestions" yaml:"suggestions"`
	Timeouts    TimeoutsConfig    `toml:"timeouts" json:"timeouts" yaml:"timeouts"`
	Display     DisplayConfig     `toml:"display" json:"display" yaml:"display"`
}

// ServiceConfig locates the decoding, suggestion and learning endpoints.
type ServiceConfig struct {
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	UserID  string `toml:"user_id" json:"user_id,omitempty" yaml:"user_id"`
}

// InputConfig holds chord capture settings.
type InputConfig struct {
	// Alphabet lists the keys that take part in chords.
	Alphabet []string `toml:"alphabet" json:"alphabet" yaml:"alphabet"`
	// ChordWindowMS is how long the terminal front end waits for more keys
	// before treating a chord as released (terminals report no key-up).
	ChordWindowMS int `toml:"chord_window_ms" json:"chord_window_ms,omitempty" yaml:"chord_window_ms"`
}

// SuggestionsConfig holds suggestion display and caching settings.
type SuggestionsConfig struct {
	Max int `toml:"max" json:"max,omitempty" yaml:"max"`
	// CacheTTLSeconds caches suggestion lists per word. Negative disables.
	CacheTTLSeconds int `toml:"cache_ttl_seconds" json:"cache_ttl_seconds,omitempty" yaml:"cache_ttl_seconds"`
}

// TimeoutsConfig bounds each outgoing service call.
type TimeoutsConfig struct {
	TranslateMS int `toml:"translate_ms" json:"translate_ms,omitempty" yaml:"translate_ms"`
	SuggestMS   int `toml:"suggest_ms" json:"suggest_ms,omitempty" yaml:"suggest_ms"`
	LearnMS     int `toml:"learn_ms" json:"learn_ms,omitempty" yaml:"learn_ms"`
}

// DisplayConfig holds presentation hints for front ends.
type DisplayConfig struct {
	Placeholder string `toml:"placeholder" json:"placeholder" yaml:"placeholder"`
	HighlightMS int    `toml:"highlight_ms" json:"highlight_ms,omitempty" yaml:"highlight_ms"`
}

// ConfigDir returns the config directory path.
// Resolution order: $CHORDLET_CONFIG_DIR > $XDG_CONFIG_HOME/chordlet > ~/.config/chordlet
func ConfigDir() string {
	if dir := os.Getenv("CHORDLET_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "chordlet")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "chordlet-config")
	}
	return filepath.Join(home, ".config", "chordlet")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("chordlet: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from the default path or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path, decoding by extension
// (.toml, .yaml/.yml, .json). A missing file yields the defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills zero-valued fields from the embedded defaults.
func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if cfg.Service.BaseURL == "" {
		cfg.Service.BaseURL = defaults.Service.BaseURL
	}
	if len(cfg.Input.Alphabet) == 0 {
		cfg.Input.Alphabet = defaults.Input.Alphabet
	}
	if cfg.Input.ChordWindowMS == 0 {
		cfg.Input.ChordWindowMS = defaults.Input.ChordWindowMS
	}
	if cfg.Suggestions.Max == 0 {
		cfg.Suggestions.Max = defaults.Suggestions.Max
	}
	if cfg.Suggestions.CacheTTLSeconds == 0 {
		cfg.Suggestions.CacheTTLSeconds = defaults.Suggestions.CacheTTLSeconds
	}
	if cfg.Timeouts.TranslateMS == 0 {
		cfg.Timeouts.TranslateMS = defaults.Timeouts.TranslateMS
	}
	if cfg.Timeouts.SuggestMS == 0 {
		cfg.Timeouts.SuggestMS = defaults.Timeouts.SuggestMS
	}
	if cfg.Timeouts.LearnMS == 0 {
		cfg.Timeouts.LearnMS = defaults.Timeouts.LearnMS
	}
	if cfg.Display.Placeholder == "" {
		cfg.Display.Placeholder = defaults.Display.Placeholder
	}
	if cfg.Display.HighlightMS == 0 {
		cfg.Display.HighlightMS = defaults.Display.HighlightMS
	}
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if ResolveServiceURL(cfg) == "" {
		warnings = append(warnings, "service.base_url is empty; chords cannot be decoded")
	}
	seen := make(map[string]bool, len(cfg.Input.Alphabet))
	for _, k := range cfg.Input.Alphabet {
		switch {
		case k == "":
			warnings = append(warnings, "input.alphabet contains an empty key")
		case IsControlKey(k):
			warnings = append(warnings, fmt.Sprintf("input.alphabet key %q is a control key and will never form a chord", k))
		case seen[k]:
			warnings = append(warnings, fmt.Sprintf("input.alphabet lists %q more than once", k))
		}
		seen[k] = true
	}
	for _, k := range cfg.Input.Alphabet {
		if len([]rune(k)) == 1 && k >= "1" && k <= "9" {
			warnings = append(warnings, fmt.Sprintf("input.alphabet key %q shadows candidate selection in the terminal front end", k))
		}
	}
	if cfg.Display.Placeholder != "" && cfg.Display.Placeholder != NoDecoding && len([]rune(cfg.Display.Placeholder)) != 1 {
		warnings = append(warnings, "display.placeholder should be a single character")
	}
	return warnings
}

// Control key names. These never take part in chords.
const (
	KeySpace     = " "
	KeyBackspace = "Backspace"
	KeyEnter     = "Enter"
)

// IsControlKey reports whether key is one of the control keys.
func IsControlKey(key string) bool {
	return key == KeySpace || key == KeyBackspace || key == KeyEnter
}

// ResolveServiceURL returns the service base URL.
// Priority: $CHORDLET_SERVICE_URL env > config value.
func ResolveServiceURL(cfg *Config) string {
	if url := os.Getenv("CHORDLET_SERVICE_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	if cfg != nil {
		return strings.TrimRight(cfg.Service.BaseURL, "/")
	}
	return ""
}

// ResolveUserID returns the user id sent with every service call.
// Priority: $CHORDLET_USER_ID env > config value > a freshly generated id.
// Callers resolve it once per session.
func ResolveUserID(cfg *Config) string {
	if id := os.Getenv("CHORDLET_USER_ID"); id != "" {
		return id
	}
	if cfg != nil && cfg.Service.UserID != "" {
		return cfg.Service.UserID
	}
	return "user_" + uuid.NewString()
}

// ChordWindow returns the terminal chord window.
func (c *Config) ChordWindow() time.Duration {
	return time.Duration(c.Input.ChordWindowMS) * time.Millisecond
}

// SuggestionCacheTTL returns the suggestion cache TTL, or 0 when disabled.
func (c *Config) SuggestionCacheTTL() time.Duration {
	if c.Suggestions.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Suggestions.CacheTTLSeconds) * time.Second
}

// TranslateTimeout bounds one /translate call.
func (c *Config) TranslateTimeout() time.Duration {
	return time.Duration(c.Timeouts.TranslateMS) * time.Millisecond
}

// SuggestTimeout bounds one /suggest call.
func (c *Config) SuggestTimeout() time.Duration {
	return time.Duration(c.Timeouts.SuggestMS) * time.Millisecond
}

// LearnTimeout bounds one /learn call.
func (c *Config) LearnTimeout() time.Duration {
	return time.Duration(c.Timeouts.LearnMS) * time.Millisecond
}

// HighlightDuration is how long a corrected character stays highlighted.
func (c *Config) HighlightDuration() time.Duration {
	return time.Duration(c.Display.HighlightMS) * time.Millisecond
}
