// Package memory keeps a size-bounded conversation record per user and
// compresses its oldest lines into a running summary.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/boat-builder/chatbridge/llm"
	"github.com/boat-builder/chatbridge/prompts"
	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultModel         = "gpt-4o"
	DefaultTemperature   = 0.4
	DefaultTopP          = 0.9
	DefaultMaxTokens     = 16384
	DefaultRetryInterval = 500 * time.Millisecond
)

// evictCount is the number of oldest lines folded into the summary per pass,
// normally one user turn plus one assistant turn.
const evictCount = 2

var ErrNoClient = errors.New("memory has no completion client")

// Config carries the live configuration attached to a Memory. None of it is
// persisted.
type Config struct {
	AIName          string
	Model           string
	Temperature     float64
	TopP            float64
	MaxTokens       int
	SummaryTemplate string
	Retries         uint64
	RetryInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	return c
}

// DefaultConfig returns the summarization parameters used when nothing is configured.
func DefaultConfig(aiName string) Config {
	return Config{
		AIName:      aiName,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		MaxTokens:   DefaultMaxTokens,
	}
}

// TokenBudget is the ceiling on verbatim history, half the context length.
func (c Config) TokenBudget() int {
	return c.MaxTokens / 2
}

type Option func(*Memory)

func WithTokenizer(tokenizer Tokenizer) Option {
	return func(m *Memory) {
		m.tokenizer = tokenizer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		m.logger = logger
	}
}

// Memory is the rolling conversation memory of one user.
type Memory struct {
	// updateMu serializes Update calls; mu guards the fields read by snapshots.
	updateMu sync.Mutex
	mu       sync.RWMutex
	history  []llm.Message
	summary  string

	config    Config
	client    llm.Completer
	tokenizer Tokenizer
	logger    *slog.Logger
}

func New(cfg Config, client llm.Completer, opts ...Option) *Memory {
	m := &Memory{
		history: []llm.Message{},
		config:  cfg.withDefaults(),
		client:  client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tokenizer == nil {
		m.tokenizer = NewTiktokenCounter(DefaultEncoding)
	}
	return m
}

// Restore builds a live Memory from persisted state and freshly supplied
// configuration and client. Persisted history is validated like any other input.
func Restore(state State, cfg Config, client llm.Completer, opts ...Option) (*Memory, error) {
	if err := llm.Validate(state.MessageHistory); err != nil {
		return nil, fmt.Errorf("restore memory: %w", err)
	}
	m := New(cfg, client, opts...)
	m.history = append(m.history, state.MessageHistory...)
	m.summary = state.Summary
	return m, nil
}

// State exports exactly the persisted fields.
func (m *Memory) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		MessageHistory: append([]llm.Message{}, m.history...),
		Summary:        m.summary,
	}
}

func (m *Memory) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

func (m *Memory) History() []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]llm.Message{}, m.history...)
}

func (m *Memory) TokenBudget() int {
	return m.config.TokenBudget()
}

// TokenCount is the token size of the verbatim history.
func (m *Memory) TokenCount() int {
	return m.messagesTokenCount(m.History())
}

// Update appends messages and compresses once when a summary already exists
// or the history exceeds the token budget. Only validation errors are
// returned; a failed compression never fails the update.
func (m *Memory) Update(ctx context.Context, messages []llm.Message, user llm.User) error {
	if err := llm.Validate(messages); err != nil {
		return err
	}
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	state := m.State()
	history := append(state.MessageHistory, messages...)
	summary := state.Summary

	count := m.messagesTokenCount(history)
	m.logger.Info("updated memory", "userID", user.ID, "tokens", count, "budget", m.TokenBudget())
	if summary != "" || count > m.TokenBudget() {
		history, summary = m.compress(ctx, history, summary, user)
	}

	m.mu.Lock()
	m.history = history
	m.summary = summary
	m.mu.Unlock()
	return nil
}

// compress evicts the two oldest lines and folds them into the summary. The
// evicted lines stay dropped when summarization fails.
func (m *Memory) compress(ctx context.Context, history []llm.Message, summary string, user llm.User) ([]llm.Message, string) {
	n := min(evictCount, len(history))
	evicted := history[:n]
	remaining := append([]llm.Message{}, history[n:]...)

	prompt, err := m.summaryPrompt(evicted, summary, user)
	if err != nil {
		m.logger.Error("failed to build summary prompt", "userID", user.ID, "error", err)
		return remaining, summary
	}
	newSummary, err := m.summarize(ctx, prompt, user)
	if err != nil {
		m.logger.Error("failed to update summary", "userID", user.ID, "evicted", n, "error", err)
		return remaining, summary
	}
	m.logger.Info("updated summary", "userID", user.ID, "tokens", m.tokenizer.Count(newSummary))
	return remaining, newSummary
}

func (m *Memory) summaryPrompt(evicted []llm.Message, summary string, user llm.User) ([]llm.Message, error) {
	text, err := prompts.SummaryPrompt(m.config.SummaryTemplate, prompts.SummaryPromptData{
		Summary:  summary,
		NewLines: prompts.FormatTranscript(evicted, m.config.AIName, user.Name),
	})
	if err != nil {
		return nil, err
	}
	return llm.Create(text, llm.RoleSystem)
}

func (m *Memory) summarize(ctx context.Context, prompt []llm.Message, user llm.User) (string, error) {
	if m.client == nil {
		return "", ErrNoClient
	}
	req := llm.Request{
		Model:       m.config.Model,
		Messages:    prompt,
		Temperature: m.config.Temperature,
		TopP:        m.config.TopP,
		User:        user.ID,
	}
	var summary string
	operation := func() error {
		out, err := m.client.Complete(ctx, req)
		if err != nil {
			return err
		}
		summary = out.Message.Content
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.config.RetryInterval
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, m.config.Retries), ctx))
	return summary, err
}

// messagesTokenCount counts the history rendered as "role: content\n" lines.
func (m *Memory) messagesTokenCount(messages []llm.Message) int {
	var text strings.Builder
	for _, msg := range messages {
		text.WriteString(string(msg.Role))
		text.WriteString(": ")
		text.WriteString(msg.Content)
		text.WriteString("\n")
	}
	return m.tokenizer.Count(text.String())
}
