package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the faqbot API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Index     IndexConfig     `yaml:"index"`
	Turns     TurnsConfig     `yaml:"turns"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// OpenAIConfig holds the remote embedding and chat endpoint settings.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	TimeoutSec     int    `yaml:"timeout_sec"`
}

// RetrievalConfig holds retrieval and evidence-selection settings.
// ScoreThreshold is a pointer so an explicit 0 survives defaulting.
type RetrievalConfig struct {
	TopK           int      `yaml:"topk"`
	ScoreThreshold *float64 `yaml:"score_threshold"`
	RerankK        int      `yaml:"rerank_k"`
	Offline        bool     `yaml:"offline"`
}

// Threshold returns the configured score threshold.
func (c RetrievalConfig) Threshold() float64 {
	if c.ScoreThreshold == nil {
		return 0.30
	}
	return *c.ScoreThreshold
}

// IndexConfig holds the index artifact locations and the system prompt path.
type IndexConfig struct {
	Path         string `yaml:"path"`
	MetaPath     string `yaml:"meta_path"`
	SystemPrompt string `yaml:"system_prompt"`
}

// TurnsConfig holds the conversation log store settings.
type TurnsConfig struct {
	DBPath string `yaml:"db_path"`
}

// CacheConfig holds the optional embedding cache settings.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
}

// Enabled reports whether the embedding cache is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Two sequential remote model calls can take a while.
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-5-nano"
	}
	if c.OpenAI.TimeoutSec <= 0 {
		c.OpenAI.TimeoutSec = 60
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 4
	}
	if c.Retrieval.ScoreThreshold == nil {
		threshold := 0.30
		c.Retrieval.ScoreThreshold = &threshold
	}
	if c.Retrieval.RerankK <= 0 {
		c.Retrieval.RerankK = 2
	}
	if c.Index.Path == "" {
		c.Index.Path = "data/index.bin"
	}
	if c.Index.MetaPath == "" {
		c.Index.MetaPath = "data/index_meta.json"
	}
	if c.Index.SystemPrompt == "" {
		c.Index.SystemPrompt = "prompts/system.txt"
	}
	if c.Turns.DBPath == "" {
		c.Turns.DBPath = "data/logs.db"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if t := c.Retrieval.Threshold(); t < -1 || t > 1 {
		return fmt.Errorf(
			"retrieval.score_threshold must be within [-1, 1], got %g", t,
		)
	}
	if c.Retrieval.RerankK > c.Retrieval.TopK {
		return fmt.Errorf(
			"retrieval.rerank_k (%d) must not exceed retrieval.topk (%d)",
			c.Retrieval.RerankK, c.Retrieval.TopK,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
