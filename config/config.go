// Package config loads the bridge configuration from a YAML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Memory  MemoryConfig  `yaml:"memory"`
	Persona PersonaConfig `yaml:"persona"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Store   StoreConfig   `yaml:"store"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	APIVersion  string  `yaml:"api_version"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

type MemoryConfig struct {
	MaxTokens      int     `yaml:"max_tokens"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TopP           float64 `yaml:"top_p"`
	SummaryRetries uint64  `yaml:"summary_retries"`
	Tokenizer      string  `yaml:"tokenizer"`
}

type PersonaConfig struct {
	AIName          string `yaml:"ai_name"`
	Template        string `yaml:"template"`
	InstructionsURL string `yaml:"instructions_url"`

	// AllowedUsers maps display names to user ids. Empty allows everyone.
	AllowedUsers map[string]string `yaml:"allowed_users"`
}

type RuntimeConfig struct {
	LogDirectory string        `yaml:"log_directory"`
	Debug        bool          `yaml:"debug"`
	// EchoOnly answers every message with a maintenance notice instead of
	// calling the model. It is independent of Debug, which only sets the log level.
	EchoOnly     bool          `yaml:"echo_only"`
	Workers      int64         `yaml:"workers"`
	HTTPAddr     string        `yaml:"http_addr"`
	DedupTTL     time.Duration `yaml:"dedup_ttl"`
}

type StoreConfig struct {
	Kind     string `yaml:"kind"`
	URL      string `yaml:"url"`
	DSN      string `yaml:"dsn"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

const (
	TokenizerTiktoken  = "tiktoken"
	TokenizerHeuristic = "heuristic"
)

var (
	providers  = []string{"openai", "groq", "azure", "custom"}
	storeKinds = []string{"file", "sqlite", "postgres", "redis"}
	tokenizers = []string{TokenizerTiktoken, TokenizerHeuristic}
)

// Default returns the configuration used for every field left unset.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			MaxTokens:   512,
			Temperature: 1.0,
			TopP:        1.0,
		},
		Memory: MemoryConfig{
			MaxTokens:   16384,
			Temperature: 0.4,
			TopP:        0.9,
			Tokenizer:   TokenizerTiktoken,
		},
		Persona: PersonaConfig{
			Template:        "template",
			InstructionsURL: "./instructions",
		},
		Runtime: RuntimeConfig{
			LogDirectory: "./logs",
			Workers:      4,
			HTTPAddr:     ":8080",
			DedupTTL:     10 * time.Minute,
		},
		Store: StoreConfig{
			Kind: "file",
		},
	}
}

// Load reads path (optional), then .env, then the environment, and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded, using environment variables", "error", err)
	}
	cfg.applyEnv()
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LLM.Provider = getEnv("CHATBRIDGE_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.APIKey = getEnv("CHATBRIDGE_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("CHATBRIDGE_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIVersion = getEnv("CHATBRIDGE_API_VERSION", c.LLM.APIVersion)
	c.LLM.Model = getEnv("CHATBRIDGE_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvInt("CHATBRIDGE_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("CHATBRIDGE_TEMPERATURE", c.LLM.Temperature)
	c.LLM.TopP = getEnvFloat("CHATBRIDGE_TOP_P", c.LLM.TopP)

	c.Memory.MaxTokens = getEnvInt("CHATBRIDGE_MEMORY_MAX_TOKENS", c.Memory.MaxTokens)
	c.Memory.Model = getEnv("CHATBRIDGE_MEMORY_MODEL", c.Memory.Model)
	c.Memory.Tokenizer = getEnv("CHATBRIDGE_TOKENIZER", c.Memory.Tokenizer)

	c.Persona.AIName = getEnv("CHATBRIDGE_AI_NAME", c.Persona.AIName)
	c.Persona.Template = getEnv("CHATBRIDGE_TEMPLATE", c.Persona.Template)
	c.Persona.InstructionsURL = getEnv("CHATBRIDGE_INSTRUCTIONS_URL", c.Persona.InstructionsURL)

	c.Runtime.LogDirectory = getEnv("CHATBRIDGE_LOG_DIRECTORY", c.Runtime.LogDirectory)
	c.Runtime.Debug = getEnvBool("CHATBRIDGE_DEBUG", c.Runtime.Debug)
	c.Runtime.EchoOnly = getEnvBool("CHATBRIDGE_ECHO_ONLY", c.Runtime.EchoOnly)
	c.Runtime.Workers = int64(getEnvInt("CHATBRIDGE_WORKERS", int(c.Runtime.Workers)))
	c.Runtime.HTTPAddr = getEnv("CHATBRIDGE_HTTP_ADDR", c.Runtime.HTTPAddr)
	c.Runtime.DedupTTL = getEnvDuration("CHATBRIDGE_DEDUP_TTL", c.Runtime.DedupTTL)

	c.Store.Kind = getEnv("CHATBRIDGE_STORE_KIND", c.Store.Kind)
	c.Store.URL = getEnv("CHATBRIDGE_STORE_URL", c.Store.URL)
	c.Store.DSN = getEnv("CHATBRIDGE_STORE_DSN", c.Store.DSN)
	c.Store.Addr = getEnv("CHATBRIDGE_REDIS_ADDR", c.Store.Addr)
	c.Store.Password = getEnv("CHATBRIDGE_REDIS_PASSWORD", c.Store.Password)
	c.Store.DB = getEnvInt("CHATBRIDGE_REDIS_DB", c.Store.DB)
	c.Store.Prefix = getEnv("CHATBRIDGE_REDIS_PREFIX", c.Store.Prefix)
}

// fillDerived applies defaults that depend on other fields.
func (c *Config) fillDerived() {
	if c.Memory.Model == "" {
		c.Memory.Model = c.LLM.Model
	}
	if c.Store.Kind == "file" && c.Store.URL == "" {
		c.Store.URL = strings.TrimSuffix(c.Runtime.LogDirectory, "/") + "/" + strings.ToLower(c.Persona.AIName) + "/memories.json"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Persona.AIName == "" {
		errs = append(errs, errors.New("ai_name is required"))
	}
	if !oneOf(c.LLM.Provider, providers) {
		errs = append(errs, fmt.Errorf("unknown provider %q", c.LLM.Provider))
	}
	if !oneOf(c.Store.Kind, storeKinds) {
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}
	if !oneOf(c.Memory.Tokenizer, tokenizers) {
		errs = append(errs, fmt.Errorf("unknown tokenizer %q", c.Memory.Tokenizer))
	}
	if c.Memory.MaxTokens <= 0 {
		errs = append(errs, errors.New("memory max_tokens must be positive"))
	}
	return errors.Join(errs...)
}

// IsAllowed reports whether userID may talk to the bridge.
func (c *Config) IsAllowed(userID string) bool {
	if len(c.Persona.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.Persona.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}
