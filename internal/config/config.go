// Package config handles omnibrain configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/omnibrain/config.yaml, /config/config.yaml,
// /etc/omnibrain/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "omnibrain", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/omnibrain/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all omnibrain configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	DataDir    string           `yaml:"data_dir"`
	LogDir     string           `yaml:"log_dir"`
	LogLevel   string           `yaml:"log_level"`
	SkillsDir  string           `yaml:"skills_dir"`
	APIKey     string           `yaml:"api_key"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Proactive  ProactiveConfig  `yaml:"proactive"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	QuietHours QuietHoursConfig `yaml:"quiet_hours"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Approval   ApprovalConfig   `yaml:"approval"`
	Google     GoogleConfig     `yaml:"google"`
}

// GoogleConfig carries the OAuth client credentials for Gmail/Calendar
// pairing. The token exchange and API clients themselves are out of scope
// for this tree; only enough is wired to construct the consent URL and
// persist the resulting tokens in SecureStorage.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Configured reports whether a Google OAuth client is set up.
func (c GoogleConfig) Configured() bool {
	return c.ClientID != "" && c.RedirectURL != ""
}

// ListenConfig defines the API server bind settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// EncryptionConfig controls the SecureStorage token vault.
type EncryptionConfig struct {
	Key string `yaml:"key"` // OMNIBRAIN_ENCRYPTION_KEY, expanded from env
}

// Configured reports whether an encryption key was supplied. Without one,
// the daemon does not open SecureStorage at all.
func (c EncryptionConfig) Configured() bool {
	return c.Key != ""
}

// ProvidersConfig carries the LLM provider API keys the router picks from.
// The router implementation itself is out of scope; only key presence
// decides which provider ResourceContainer prefers.
type ProvidersConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	DeepSeekAPIKey  string `yaml:"deepseek_api_key"`
}

// Configured reports whether any provider key is set.
func (c ProvidersConfig) Configured() bool {
	return c.AnthropicAPIKey != "" || c.OpenAIAPIKey != "" || c.DeepSeekAPIKey != ""
}

// Preferred returns the provider name ResourceContainer should route to,
// in priority order Anthropic > OpenAI > DeepSeek > none.
func (c ProvidersConfig) Preferred() string {
	switch {
	case c.AnthropicAPIKey != "":
		return "anthropic"
	case c.OpenAIAPIKey != "":
		return "openai"
	case c.DeepSeekAPIKey != "":
		return "deepseek"
	default:
		return ""
	}
}

// ProactiveConfig tunes the proactive task scheduler.
type ProactiveConfig struct {
	CheckIntervalMinutes int    `yaml:"check_interval_minutes"`
	BriefingTime         string `yaml:"briefing_time"` // HH:MM
	EveningTime          string `yaml:"evening_time"`  // HH:MM
	WeeklyDay            string `yaml:"weekly_day"`    // e.g. "sunday"
	WeeklyTime           string `yaml:"weekly_time"`    // HH:MM
}

// TelegramConfig carries optional Telegram notification credentials.
// The bot's UI formatting is out of scope; only credential presence matters
// to ResourceContainer init.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Configured reports whether both a bot token and chat id are present.
func (c TelegramConfig) Configured() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// QuietHoursConfig defines the window NotificationLevelSelector downgrades
// notifications within. Hours are 0-23, local time.
type QuietHoursConfig struct {
	Enabled   bool `yaml:"enabled"`
	StartHour int  `yaml:"start_hour"`
	EndHour   int  `yaml:"end_hour"`
}

// EmbeddingsConfig defines the optional vector-store accelerator behind
// Memory. The vector backend itself is out of scope; this only records
// whether Memory should attempt to use one.
type EmbeddingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"baseurl"`
	Model   string `yaml:"model"`
}

// ApprovalConfig lists action-type strings ApprovalGate allows to
// auto-execute without a pending proposal approval step.
type ApprovalConfig struct {
	AutoApprove []string `yaml:"auto_approve"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${OMNIBRAIN_ENCRYPTION_KEY}).
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults, pulling
// from well-known environment variables where the config file left a
// credential blank. Called automatically by Load.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.DataDir, "logs")
	}
	if c.SkillsDir == "" {
		c.SkillsDir = filepath.Join(c.DataDir, "skills")
	}
	if c.Encryption.Key == "" {
		c.Encryption.Key = os.Getenv("OMNIBRAIN_ENCRYPTION_KEY")
	}
	if c.Providers.AnthropicAPIKey == "" {
		c.Providers.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Providers.OpenAIAPIKey == "" {
		c.Providers.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Providers.DeepSeekAPIKey == "" {
		c.Providers.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if c.Telegram.BotToken == "" {
		c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Telegram.ChatID == "" {
		c.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if c.Proactive.CheckIntervalMinutes == 0 {
		c.Proactive.CheckIntervalMinutes = 15
	}
	if c.Proactive.BriefingTime == "" {
		c.Proactive.BriefingTime = "07:30"
	}
	if c.Proactive.EveningTime == "" {
		c.Proactive.EveningTime = "18:00"
	}
	if c.Proactive.WeeklyDay == "" {
		c.Proactive.WeeklyDay = "sunday"
	}
	if c.Proactive.WeeklyTime == "" {
		c.Proactive.WeeklyTime = "19:00"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "nomic-embed-text"
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.QuietHours.Enabled {
		if c.QuietHours.StartHour < 0 || c.QuietHours.StartHour > 23 {
			return fmt.Errorf("quiet_hours.start_hour %d out of range (0-23)", c.QuietHours.StartHour)
		}
		if c.QuietHours.EndHour < 0 || c.QuietHours.EndHour > 23 {
			return fmt.Errorf("quiet_hours.end_hour %d out of range (0-23)", c.QuietHours.EndHour)
		}
	}
	return nil
}

// Default returns a default configuration suitable for local development.
// All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
