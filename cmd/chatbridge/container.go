package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/boat-builder/chatbridge"
	"github.com/boat-builder/chatbridge/config"
	"github.com/boat-builder/chatbridge/llm"
	"github.com/boat-builder/chatbridge/memory"
	"github.com/boat-builder/chatbridge/prompts"
	"github.com/boat-builder/chatbridge/transport"

	// register cloud storage schemes with afs
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"
)

// Container holds every long-lived component of the binary.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Client  llm.Completer
	Storage chatbridge.Storage
	Store   *chatbridge.Store
	Pod     *chatbridge.Pod
	Handler *transport.Handler
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewContainer resolves the provider and storage backend once, restores
// persisted memories and wires the Pod and transport handler.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger := newLogger(cfg.Runtime.Debug)
	slog.SetDefault(logger)

	provider, err := llm.ParseProvider(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewProvider(llm.LLMConfig{
		Provider:   provider,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		APIVersion: cfg.LLM.APIVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	storage, err := chatbridge.NewStorage(ctx, chatbridge.StorageConfig{
		Kind:     chatbridge.StorageKind(cfg.Store.Kind),
		URL:      cfg.Store.URL,
		DSN:      cfg.Store.DSN,
		Addr:     cfg.Store.Addr,
		Password: cfg.Store.Password,
		DB:       cfg.Store.DB,
		Prefix:   cfg.Store.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	loader := prompts.NewFileLoader(cfg.Persona.InstructionsURL)
	tokenizer := newTokenizer(cfg.Memory.Tokenizer)
	memoryConfig := newMemoryConfig(ctx, cfg, loader)
	usage := chatbridge.NewUsageTracker()
	summaryClient := usage.Track(client)
	store := chatbridge.NewStore(storage, func(state memory.State) (*memory.Memory, error) {
		return memory.Restore(state, memoryConfig, summaryClient, memory.WithTokenizer(tokenizer))
	})
	if err := store.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}

	builder := prompts.NewBuilder(cfg.Persona.AIName, cfg.Persona.Template, loader)
	pod := chatbridge.NewPod(chatbridge.ChatParams{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
	}, client, builder, store, cfg.Runtime.Workers)
	pod.SetUsageTracker(usage)

	handler := transport.NewHandler(pod, newHandlerOptions(cfg))

	logger.Info("container ready", "ai", cfg.Persona.AIName, "provider", provider, "model", cfg.LLM.Model, "backend", cfg.Store.Kind, "users", store.Len())
	return &Container{
		Config:  cfg,
		Logger:  logger,
		Client:  client,
		Storage: storage,
		Store:   store,
		Pod:     pod,
		Handler: handler,
	}, nil
}

// newMemoryConfig maps the memory section onto memory.Config. The summary
// prompt comes from the instructions tree; when it is missing the built-in
// prompt is used.
func newMemoryConfig(ctx context.Context, cfg *config.Config, loader prompts.Loader) memory.Config {
	return memory.Config{
		AIName:          cfg.Persona.AIName,
		Model:           cfg.Memory.Model,
		Temperature:     cfg.Memory.Temperature,
		TopP:            cfg.Memory.TopP,
		MaxTokens:       cfg.Memory.MaxTokens,
		Retries:         cfg.Memory.SummaryRetries,
		SummaryTemplate: loader.LoadTemplate(ctx, prompts.SummaryPromptName),
	}
}

func newHandlerOptions(cfg *config.Config) transport.Options {
	return transport.Options{
		Allowed:  cfg.IsAllowed,
		Dedup:    transport.NewDeduplicator(cfg.Runtime.DedupTTL),
		ChatLog:  transport.NewChatLog(cfg.Runtime.LogDirectory),
		EchoOnly: cfg.Runtime.EchoOnly,
	}
}

func newTokenizer(kind string) memory.Tokenizer {
	if kind == config.TokenizerHeuristic {
		return memory.HeuristicCounter{}
	}
	return memory.NewTiktokenCounter(memory.DefaultEncoding)
}

// Cleanup flushes the store and releases the backend.
func (c *Container) Cleanup() {
	if err := c.Store.Persist(context.Background()); err != nil {
		c.Logger.Error("final persist failed", "error", err)
	}
	if err := c.Store.Close(); err != nil {
		c.Logger.Error("failed to close storage", "error", err)
	}
}
