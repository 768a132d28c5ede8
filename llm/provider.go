package llm

import (
	"fmt"
	"strings"
)

// Provider names a completion backend in configuration.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
	ProviderAzure  Provider = "azure"
	ProviderCustom Provider = "custom"
)

const (
	GroqBaseURL            = "https://api.groq.com/openai/v1"
	DefaultAzureAPIVersion = "2024-06-01"
)

// Factory builds a Completer for a resolved configuration.
type Factory func(cfg LLMConfig) (Completer, error)

var providers = map[Provider]Factory{
	ProviderOpenAI: func(cfg LLMConfig) (Completer, error) {
		return cfg.NewLLMClient(), nil
	},
	ProviderGroq: func(cfg LLMConfig) (Completer, error) {
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		return cfg.NewLLMClient(), nil
	},
	ProviderAzure: func(cfg LLMConfig) (Completer, error) {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider %s requires a base url", cfg.Provider)
		}
		return cfg.NewAzureClient(), nil
	},
	ProviderCustom: requireBaseURL,
}

func requireBaseURL(cfg LLMConfig) (Completer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %s requires a base url", cfg.Provider)
	}
	return cfg.NewLLMClient(), nil
}

// ParseProvider maps a configuration value to a known provider. An empty
// value selects OpenAI.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		return ProviderOpenAI, nil
	}
	if _, ok := providers[p]; !ok {
		return "", fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

// NewProvider resolves the configured provider once, at startup.
func NewProvider(cfg LLMConfig) (Completer, error) {
	p := cfg.Provider
	if p == "" {
		p = ProviderOpenAI
	}
	factory, ok := providers[p]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	cfg.Provider = p
	return factory(cfg)
}
