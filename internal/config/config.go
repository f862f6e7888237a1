// Package config provides Viper-based configuration loading for the parley bot.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BotConfig holds the bot identity settings.
type BotConfig struct {
	// Name is the display name the bot answers to in group chats.
	Name string `mapstructure:"name"`
	// DataDir is the root directory for persisted state (cache file, temp media).
	DataDir string `mapstructure:"data_dir"`
}

// CommandsConfig holds the command prefix and the alias lists for every logical command.
type CommandsConfig struct {
	Prefix        string   `mapstructure:"prefix"`
	Help          []string `mapstructure:"help"`
	Clear         []string `mapstructure:"clear"`
	GroupChat     []string `mapstructure:"group_chat"`
	StopGroupChat []string `mapstructure:"stop_group_chat"`
	Knowledge     []string `mapstructure:"knowledge"`
	Game          []string `mapstructure:"game"`
	Tool          []string `mapstructure:"tool"`
	Admin         []string `mapstructure:"admin"`
	// HelpKeywords let a group message through the gate when it contains any of them.
	HelpKeywords []string `mapstructure:"help_keywords"`
}

// FeaturesConfig toggles optional command families.
type FeaturesConfig struct {
	Knowledge     bool `mapstructure:"knowledge"`
	Entertainment bool `mapstructure:"entertainment"`
	Tools         bool `mapstructure:"tools"`
	Admin         bool `mapstructure:"admin"`
	GroupChat     bool `mapstructure:"group_chat"`
}

// AIConfig holds the completion endpoint settings.
type AIConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// ThinkingBudget is the token budget granted when deep reasoning is requested.
	ThinkingBudget int `mapstructure:"thinking_budget"`
	// CacheTTL is how long identical completions are served from the cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// CacheConfig holds the expiring cache settings.
type CacheConfig struct {
	// Path is the persisted cache file. Empty disables persistence.
	Path          string        `mapstructure:"path"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSize       int           `mapstructure:"max_size"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SessionConfig holds the per-user transcript settings.
type SessionConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
}

// GroupChatConfig holds the shared-mode settings.
type GroupChatConfig struct {
	// Interval is the number of qualifying messages between autonomous bot turns.
	Interval int `mapstructure:"interval"`
	// MaxContext caps the shared transcript per room.
	MaxContext int `mapstructure:"max_context"`
}

// GamesConfig holds game tuning.
type GamesConfig struct {
	QuizQuestions int      `mapstructure:"quiz_questions"`
	SeedWords     []string `mapstructure:"seed_words"`
}

// DispatchConfig bounds the dispatcher's concurrent work.
type DispatchConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// AdminConfig holds admin command settings.
type AdminConfig struct {
	// IDs are sender ids that are always admins.
	IDs []string `mapstructure:"ids"`
	// PassphraseHash is a bcrypt hash; an empty value disables "/admin auth".
	PassphraseHash string `mapstructure:"passphrase_hash"`
	WarningLimit   int    `mapstructure:"warning_limit"`
}

// KnowledgeConfig holds knowledge search settings.
type KnowledgeConfig struct {
	// ContentPath is a YAML knowledge base overriding the embedded default.
	ContentPath string `mapstructure:"content_path"`
	MaxResults  int    `mapstructure:"max_results"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// TelnetConfig holds the development chat transport settings.
type TelnetConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// HealthConfig holds the gRPC health service settings.
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File is an optional log file written in addition to stdout.
	File string `mapstructure:"file"`
}

// Config is the top-level application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Commands  CommandsConfig  `mapstructure:"commands"`
	Features  FeaturesConfig  `mapstructure:"features"`
	AI        AIConfig        `mapstructure:"ai"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Session   SessionConfig   `mapstructure:"session"`
	GroupChat GroupChatConfig `mapstructure:"group_chat"`
	Games     GamesConfig     `mapstructure:"games"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telnet    TelnetConfig    `mapstructure:"telnet"`
	Health    HealthConfig    `mapstructure:"health"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, fn := range []func() error{
		func() error { return validateBot(c.Bot) },
		func() error { return validateCommands(c.Commands) },
		func() error { return validateAI(c.AI) },
		func() error { return validateCache(c.Cache) },
		func() error { return validateLimits(c) },
		func() error { return validateDatabase(c.Database) },
		func() error { return validateTelnet(c.Telnet) },
		func() error { return validateHealth(c.Health) },
		func() error { return validateLogging(c.Logging) },
	} {
		if err := fn(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBot(b BotConfig) error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("bot.name must not be empty")
	}
	return nil
}

func validateCommands(c CommandsConfig) error {
	var errs []string
	if strings.TrimSpace(c.Prefix) == "" {
		errs = append(errs, "commands.prefix must not be empty")
	}
	lists := map[string][]string{
		"help":            c.Help,
		"clear":           c.Clear,
		"group_chat":      c.GroupChat,
		"stop_group_chat": c.StopGroupChat,
		"knowledge":       c.Knowledge,
		"game":            c.Game,
		"tool":            c.Tool,
		"admin":           c.Admin,
	}
	for _, name := range []string{"help", "clear", "group_chat", "stop_group_chat", "knowledge", "game", "tool", "admin"} {
		if len(lists[name]) == 0 {
			errs = append(errs, fmt.Sprintf("commands.%s must list at least one alias", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAI(a AIConfig) error {
	var errs []string
	validProviders := map[string]bool{"openai": true, "anthropic": true}
	if !validProviders[a.Provider] {
		errs = append(errs, fmt.Sprintf("ai.provider must be one of [openai, anthropic], got %q", a.Provider))
	}
	if a.Model == "" {
		errs = append(errs, "ai.model must not be empty")
	}
	if a.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("ai.max_tokens must be >= 1, got %d", a.MaxTokens))
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("ai.temperature must be in [0, 2], got %v", a.Temperature))
	}
	if a.Timeout < 0 {
		errs = append(errs, "ai.timeout must not be negative")
	}
	if a.ThinkingBudget < 0 {
		errs = append(errs, "ai.thinking_budget must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCache(c CacheConfig) error {
	var errs []string
	if c.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive")
	}
	if c.MaxSize < 1 {
		errs = append(errs, fmt.Sprintf("cache.max_size must be >= 1, got %d", c.MaxSize))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, "cache.sweep_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLimits(c Config) error {
	var errs []string
	if c.Session.MaxTurns < 2 {
		errs = append(errs, fmt.Sprintf("session.max_turns must be >= 2, got %d", c.Session.MaxTurns))
	}
	if c.GroupChat.Interval < 1 {
		errs = append(errs, fmt.Sprintf("group_chat.interval must be >= 1, got %d", c.GroupChat.Interval))
	}
	if c.GroupChat.MaxContext < 1 {
		errs = append(errs, fmt.Sprintf("group_chat.max_context must be >= 1, got %d", c.GroupChat.MaxContext))
	}
	if c.Games.QuizQuestions < 1 {
		errs = append(errs, fmt.Sprintf("games.quiz_questions must be >= 1, got %d", c.Games.QuizQuestions))
	}
	if c.Dispatch.MaxConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("dispatch.max_concurrency must be >= 1, got %d", c.Dispatch.MaxConcurrency))
	}
	if c.Admin.WarningLimit < 1 {
		errs = append(errs, fmt.Sprintf("admin.warning_limit must be >= 1, got %d", c.Admin.WarningLimit))
	}
	if c.Knowledge.MaxResults < 1 {
		errs = append(errs, fmt.Sprintf("knowledge.max_results must be >= 1, got %d", c.Knowledge.MaxResults))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTelnet(t TelnetConfig) error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	if t.Port < 0 || t.Port > 65535 {
		errs = append(errs, fmt.Sprintf("telnet.port must be 0-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "telnet.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "telnet.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHealth(h HealthConfig) error {
	if !h.Enabled {
		return nil
	}
	if h.Port < 0 || h.Port > 65535 {
		return fmt.Errorf("health.port must be 0-65535, got %d", h.Port)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}

	// Environment variable overrides with PARLEY_ prefix
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bot.name", "Parley")
	v.SetDefault("bot.data_dir", "data")

	v.SetDefault("commands.prefix", "/")
	v.SetDefault("commands.help", []string{"help", "帮助", "?"})
	v.SetDefault("commands.clear", []string{"clear", "清除", "reset", "重置"})
	v.SetDefault("commands.group_chat", []string{"一起聊", "together", "group-chat"})
	v.SetDefault("commands.stop_group_chat", []string{"停止一起聊", "stop-together", "stop-group-chat"})
	v.SetDefault("commands.knowledge", []string{"知识", "k", "knowledge"})
	v.SetDefault("commands.game", []string{"游戏", "g", "game"})
	v.SetDefault("commands.tool", []string{"工具", "t", "tool"})
	v.SetDefault("commands.admin", []string{"admin", "管理"})
	v.SetDefault("commands.help_keywords", []string{"help", "帮助"})

	v.SetDefault("features.knowledge", true)
	v.SetDefault("features.entertainment", true)
	v.SetDefault("features.tools", true)
	v.SetDefault("features.admin", true)
	v.SetDefault("features.group_chat", true)

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ai.model", "doubao-seed-1-6-250615")
	v.SetDefault("ai.vision_model", "doubao-seed-1-6-250615")
	v.SetDefault("ai.max_tokens", 2000)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.thinking_budget", 1024)
	v.SetDefault("ai.cache_ttl", "1h")

	v.SetDefault("cache.path", "data/cache/cache.json")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.sweep_interval", "60s")

	v.SetDefault("session.max_turns", 10)

	v.SetDefault("group_chat.interval", 3)
	v.SetDefault("group_chat.max_context", 20)

	v.SetDefault("games.quiz_questions", 5)
	v.SetDefault("games.seed_words", []string{"苹果", "电脑", "音乐", "阳光", "快乐", "友谊", "梦想", "希望"})

	v.SetDefault("dispatch.max_concurrency", 32)

	v.SetDefault("admin.ids", []string{})
	v.SetDefault("admin.passphrase_hash", "")
	v.SetDefault("admin.warning_limit", 3)

	v.SetDefault("knowledge.content_path", "")
	v.SetDefault("knowledge.max_results", 5)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "parley")
	v.SetDefault("database.password", "parley")
	v.SetDefault("database.name", "parley")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("telnet.enabled", true)
	v.SetDefault("telnet.host", "127.0.0.1")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.read_timeout", "30m")
	v.SetDefault("telnet.write_timeout", "30s")

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.host", "127.0.0.1")
	v.SetDefault("health.port", 50051)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
