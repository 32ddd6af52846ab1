package justcopy

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	defaults "github.com/anupsingh-ai/justcopy-ai-ide/default"
)

// Config represents the daemon configuration.
type Config struct {
	Version    int              `toml:"version" json:"version"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Paths      PathsConfig      `toml:"paths" json:"paths"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Embedding  EmbeddingConfig  `toml:"embedding" json:"embedding"`
	Retrieval  RetrievalConfig  `toml:"retrieval" json:"retrieval"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr           string   `toml:"addr" json:"addr"`
	StaticDir      string   `toml:"static_dir" json:"static_dir"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
}

// PathsConfig holds on-disk locations.
type PathsConfig struct {
	ProjectsDir  string `toml:"projects_dir" json:"projects_dir"`
	VectorDBPath string `toml:"vector_db_path" json:"vector_db_path"`
}

// GenerationConfig holds settings for the inference gateway.
type GenerationConfig struct {
	BaseURL            string  `toml:"base_url" json:"base_url"`
	APIKey             string  `toml:"api_key" json:"api_key"`
	Model              string  `toml:"model" json:"model"`
	ChatTemperature    float64 `toml:"chat_temperature" json:"chat_temperature"`
	ChatMaxTokens      int     `toml:"chat_max_tokens" json:"chat_max_tokens"`
	ChatTimeoutSeconds int     `toml:"chat_timeout_seconds" json:"chat_timeout_seconds"`
	CodeTemperature    float64 `toml:"code_temperature" json:"code_temperature"`
	CodeMaxTokens      int     `toml:"code_max_tokens" json:"code_max_tokens"`
	CodeTimeoutSeconds int     `toml:"code_timeout_seconds" json:"code_timeout_seconds"`
}

// EmbeddingConfig holds settings for the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai", "ollama", "hash" or "none".
	Provider   string `toml:"provider" json:"provider"`
	BaseURL    string `toml:"base_url" json:"base_url"`
	APIKey     string `toml:"api_key" json:"api_key"`
	Model      string `toml:"model" json:"model"`
	Dimensions int    `toml:"dimensions" json:"dimensions"`
}

// RetrievalConfig holds context retrieval settings.
type RetrievalConfig struct {
	MaxResults          int      `toml:"max_results" json:"max_results"`
	StructureTTLMinutes int      `toml:"structure_ttl_minutes" json:"structure_ttl_minutes"`
	StructureMaxEntries int      `toml:"structure_max_entries" json:"structure_max_entries"`
	Ignore              []string `toml:"ignore" json:"ignore"`
}

// ChatTimeout returns the agentic chat inference timeout.
func (g GenerationConfig) ChatTimeout() time.Duration {
	return time.Duration(g.ChatTimeoutSeconds) * time.Second
}

// CodeTimeout returns the code generation inference timeout.
func (g GenerationConfig) CodeTimeout() time.Duration {
	return time.Duration(g.CodeTimeoutSeconds) * time.Second
}

// StructureTTL returns how long a project structure summary stays cached.
func (r RetrievalConfig) StructureTTL() time.Duration {
	return time.Duration(r.StructureTTLMinutes) * time.Minute
}

// ConfigDir returns the config directory path.
// Resolution order: $JUSTCOPY_CONFIG_DIR > $XDG_CONFIG_HOME/justcopy > ~/.config/justcopy
func ConfigDir() string {
	if dir := os.Getenv("JUSTCOPY_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "justcopy")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "justcopy-config")
	}
	return filepath.Join(home, ".config", "justcopy")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// PromptPath returns the path of a prompt override file in the config directory.
func PromptPath(name string) string {
	return filepath.Join(ConfigDir(), name)
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(string(defaults.DefaultConfigTOML), &cfg); err != nil {
		panic("justcopy: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from ConfigPath or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path or returns defaults if the file does not exist.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg, DefaultConfig())
	return &cfg, nil
}

// applyDefaults fills zero-valued fields of cfg from d.
func applyDefaults(cfg, d *Config) {
	if cfg.Version == 0 {
		cfg.Version = d.Version
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = d.Server.StaticDir
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = d.Server.AllowedOrigins
	}
	if cfg.Paths.ProjectsDir == "" {
		cfg.Paths.ProjectsDir = d.Paths.ProjectsDir
	}
	if cfg.Paths.VectorDBPath == "" {
		cfg.Paths.VectorDBPath = d.Paths.VectorDBPath
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = d.Generation.BaseURL
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = d.Generation.Model
	}
	if cfg.Generation.ChatTemperature == 0 {
		cfg.Generation.ChatTemperature = d.Generation.ChatTemperature
	}
	if cfg.Generation.ChatMaxTokens == 0 {
		cfg.Generation.ChatMaxTokens = d.Generation.ChatMaxTokens
	}
	if cfg.Generation.ChatTimeoutSeconds == 0 {
		cfg.Generation.ChatTimeoutSeconds = d.Generation.ChatTimeoutSeconds
	}
	if cfg.Generation.CodeTemperature == 0 {
		cfg.Generation.CodeTemperature = d.Generation.CodeTemperature
	}
	if cfg.Generation.CodeMaxTokens == 0 {
		cfg.Generation.CodeMaxTokens = d.Generation.CodeMaxTokens
	}
	if cfg.Generation.CodeTimeoutSeconds == 0 {
		cfg.Generation.CodeTimeoutSeconds = d.Generation.CodeTimeoutSeconds
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = d.Embedding.Provider
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = d.Embedding.Model
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = d.Embedding.Dimensions
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = d.Retrieval.MaxResults
	}
	if cfg.Retrieval.StructureTTLMinutes == 0 {
		cfg.Retrieval.StructureTTLMinutes = d.Retrieval.StructureTTLMinutes
	}
	if cfg.Retrieval.StructureMaxEntries == 0 {
		cfg.Retrieval.StructureMaxEntries = d.Retrieval.StructureMaxEntries
	}
	if cfg.Retrieval.Ignore == nil {
		cfg.Retrieval.Ignore = d.Retrieval.Ignore
	}
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	switch ResolveEmbeddingProvider(cfg) {
	case "openai", "ollama":
		if ResolveEmbeddingBaseURL(cfg) == "" {
			warnings = append(warnings, "embedding provider requires base_url; context retrieval will be degraded")
		}
	case "hash", "none":
	default:
		warnings = append(warnings, "unknown embedding provider "+ResolveEmbeddingProvider(cfg)+"; context retrieval is disabled")
	}
	if ResolveGenerationBaseURL(cfg) == "" {
		warnings = append(warnings, "generation base_url is empty; chat will always return the fallback message")
	}
	return warnings
}

// ResolveAddr returns the HTTP listen address.
// Priority: $JUSTCOPY_ADDR env > config value.
func ResolveAddr(cfg *Config) string {
	return resolve("JUSTCOPY_ADDR", cfg, func(c *Config) string { return c.Server.Addr })
}

// ResolveProjectsDir returns the projects root.
// Priority: $JUSTCOPY_PROJECTS_DIR env > config value.
func ResolveProjectsDir(cfg *Config) string {
	return resolve("JUSTCOPY_PROJECTS_DIR", cfg, func(c *Config) string { return c.Paths.ProjectsDir })
}

// ResolveVectorDBPath returns the context store directory.
// Priority: $JUSTCOPY_VECTOR_DB_PATH env > config value.
func ResolveVectorDBPath(cfg *Config) string {
	return resolve("JUSTCOPY_VECTOR_DB_PATH", cfg, func(c *Config) string { return c.Paths.VectorDBPath })
}

// ResolveGenerationBaseURL returns the inference gateway base URL.
// Priority: $JUSTCOPY_GENERATION_BASE_URL env > config value.
func ResolveGenerationBaseURL(cfg *Config) string {
	return resolve("JUSTCOPY_GENERATION_BASE_URL", cfg, func(c *Config) string { return c.Generation.BaseURL })
}

// ResolveGenerationAPIKey returns the inference gateway API key.
// Priority: $JUSTCOPY_GENERATION_API_KEY env > config value.
func ResolveGenerationAPIKey(cfg *Config) string {
	return resolve("JUSTCOPY_GENERATION_API_KEY", cfg, func(c *Config) string { return c.Generation.APIKey })
}

// ResolveGenerationModel returns the generation model name.
// Priority: $JUSTCOPY_GENERATION_MODEL env > config value.
func ResolveGenerationModel(cfg *Config) string {
	return resolve("JUSTCOPY_GENERATION_MODEL", cfg, func(c *Config) string { return c.Generation.Model })
}

// ResolveEmbeddingProvider returns the embedding provider name.
// Priority: $JUSTCOPY_EMBEDDING_PROVIDER env > config value.
func ResolveEmbeddingProvider(cfg *Config) string {
	return resolve("JUSTCOPY_EMBEDDING_PROVIDER", cfg, func(c *Config) string { return c.Embedding.Provider })
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $JUSTCOPY_EMBEDDING_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	return resolve("JUSTCOPY_EMBEDDING_BASE_URL", cfg, func(c *Config) string { return c.Embedding.BaseURL })
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $JUSTCOPY_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	return resolve("JUSTCOPY_EMBEDDING_API_KEY", cfg, func(c *Config) string { return c.Embedding.APIKey })
}

// ResolveEmbeddingModel returns the embedding model name.
// Priority: $JUSTCOPY_EMBEDDING_MODEL env > config value.
func ResolveEmbeddingModel(cfg *Config) string {
	return resolve("JUSTCOPY_EMBEDDING_MODEL", cfg, func(c *Config) string { return c.Embedding.Model })
}

func resolve(env string, cfg *Config, field func(*Config) string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	if cfg != nil {
		return field(cfg)
	}
	return ""
}
