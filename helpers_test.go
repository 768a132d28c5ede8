package chatbridge

import (
	"context"
	"errors"
	"sync"

	"github.com/boat-builder/chatbridge/llm"
	"github.com/boat-builder/chatbridge/memory"
	"github.com/boat-builder/chatbridge/prompts"
)

// memStorage is an in-process Storage that records every save.
type memStorage struct {
	mu      sync.Mutex
	users   map[string]memory.State
	saves   int
	saveErr error
	closed  bool
}

func newMemStorage(users map[string]memory.State) *memStorage {
	if users == nil {
		users = map[string]memory.State{}
	}
	return &memStorage{users: users}
}

func (m *memStorage) LoadAll(context.Context) (map[string]memory.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make(map[string]memory.State, len(m.users))
	for id, state := range m.users {
		users[id] = state.Clone()
	}
	return users, nil
}

func (m *memStorage) SaveAll(_ context.Context, users map[string]memory.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.users = users
	return nil
}

func (m *memStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memStorage) saved() (map[string]memory.State, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users, m.saves
}

type stubLoader struct{}

func (stubLoader) LoadTemplate(context.Context, string) string {
	return "You are {{.Assistant}} talking to {{.User}}."
}

func (stubLoader) LoadCharacterSheet(context.Context, string, string) string {
	return ""
}

func testMemoryFactory(client llm.Completer) MemoryFactory {
	return func(state memory.State) (*memory.Memory, error) {
		cfg := memory.DefaultConfig("Sage")
		cfg.MaxTokens = 10000
		return memory.Restore(state, cfg, client, memory.WithTokenizer(memory.HeuristicCounter{}))
	}
}

func echoCompleter() llm.Completer {
	return llm.CompleterFunc(func(_ context.Context, req llm.Request) (*llm.Completion, error) {
		last := req.Messages[len(req.Messages)-1]
		return &llm.Completion{
			Model:   req.Model,
			Message: llm.AssistantMessage("echo: " + last.Content),
			Usage:   llm.Usage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110},
		}, nil
	})
}

var errModelDown = errors.New("model down")

func failingCompleter() llm.Completer {
	return llm.CompleterFunc(func(context.Context, llm.Request) (*llm.Completion, error) {
		return nil, errModelDown
	})
}

func newTestPod(client llm.Completer, storage Storage) *Pod {
	store := NewStore(storage, testMemoryFactory(client))
	builder := prompts.NewBuilder("Sage", "persona", stubLoader{})
	return NewPod(ChatParams{Model: "gpt-4o", MaxTokens: 256, Temperature: 1, TopP: 1}, client, builder, store, 2)
}
