// Package chatbridge keeps a rolling, summarized conversation memory per user
// and answers each user turn through a language model.
package chatbridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/boat-builder/chatbridge/llm"
	"github.com/boat-builder/chatbridge/prompts"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/semaphore"
)

const DefaultWorkers = 4

// ChatParams are the generation parameters of the main chat call.
type ChatParams struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Pod answers user turns: it assembles the prompt from the user's memory,
// calls the model and commits the exchange back into memory.
type Pod struct {
	client  llm.Completer
	params  ChatParams
	builder *prompts.Builder
	store   *Store
	locks   *userLocks
	usage   *UsageTracker
	workers *semaphore.Weighted
	logger  *slog.Logger
}

// NewPod constructs a new Pod with the given resources. workers bounds the
// number of turns talking to the model at the same time.
func NewPod(params ChatParams, client llm.Completer, builder *prompts.Builder, store *Store, workers int64) *Pod {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pod{
		client:  client,
		params:  params,
		builder: builder,
		store:   store,
		locks:   newUserLocks(),
		usage:   NewUsageTracker(),
		workers: semaphore.NewWeighted(workers),
		logger:  slog.Default(),
	}
}

func (p *Pod) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// SetUsageTracker shares usage with other completers, such as the one
// memories summarize through.
func (p *Pod) SetUsageTracker(usage *UsageTracker) {
	p.usage = usage
}

func (p *Pod) Store() *Store {
	return p.store
}

// Respond runs one turn for user. The returned text is always safe to show:
// on failure it is ErrorReply and the error says why. A failed completion
// leaves the user's memory untouched and nothing is persisted.
func (p *Pod) Respond(ctx context.Context, text string, user llm.User) (string, error) {
	ctx = withTurn(ctx, user)
	input, err := llm.Create(text, llm.RoleUser)
	if err != nil {
		return ErrorReply, err
	}

	unlock := p.locks.lock(user.ID)
	defer unlock()

	// Slots are taken under the user lock; turns queued behind it hold none.
	if err := p.workers.Acquire(ctx, 1); err != nil {
		return ErrorReply, err
	}
	defer p.workers.Release(1)

	mem, ok := p.store.Get(user.ID)
	if !ok {
		if mem, err = p.store.New(); err != nil {
			return ErrorReply, fmt.Errorf("failed to create memory: %w", err)
		}
	}

	prompt, err := p.builder.Build(ctx, user, input[0], mem)
	if err != nil {
		return ErrorReply, err
	}
	completion, err := p.client.Complete(ctx, llm.Request{
		Model:       p.params.Model,
		Messages:    prompt,
		MaxTokens:   p.params.MaxTokens,
		Temperature: p.params.Temperature,
		TopP:        p.params.TopP,
		User:        user.ID,
	})
	if err != nil {
		p.logger.Error("completion failed", "userID", user.ID, "turnID", ctx.Value(llm.TurnIDKey), "error", err)
		return ErrorReply, err
	}
	reply, err := llm.Create(completion.Message.Content, llm.RoleAssistant)
	if err != nil {
		return ErrorReply, err
	}
	p.usage.Record(user.ID, p.params.Model, completion.Usage)

	if err := mem.Update(ctx, append(input, reply...), user); err != nil {
		return ErrorReply, err
	}
	p.store.Put(user.ID, mem)
	if err := p.store.Persist(ctx); err != nil {
		p.logger.Error("failed to persist memories", "userID", user.ID, "error", err)
	}
	if cost, ok := p.usage.Cost(user.ID); ok {
		p.logger.Info("turn complete", "userID", user.ID, "turnID", ctx.Value(llm.TurnIDKey),
			"inputTokens", cost.InputTokens, "outputTokens", cost.OutputTokens, "totalCost", cost.TotalCost)
	}
	return reply[0].Content, nil
}

// Reset deletes the user's memory and persists the store.
func (p *Pod) Reset(ctx context.Context, user llm.User) error {
	unlock := p.locks.lock(user.ID)
	defer unlock()

	existed := p.store.Remove(user.ID)
	p.usage.Reset(user.ID)
	p.logger.Info("reset memory", "userID", user.ID, "existed", existed)
	return p.store.Persist(ctx)
}

// Cost returns the usage accumulated for userID since start or the last reset.
func (p *Pod) Cost(userID string) (*CostDetails, bool) {
	return p.usage.Cost(userID)
}

func withTurn(ctx context.Context, user llm.User) context.Context {
	turnID, err := gonanoid.New()
	if err != nil {
		panic(err)
	}
	ctx = context.WithValue(ctx, llm.TurnIDKey, turnID)
	return context.WithValue(ctx, llm.UserIDKey, user.ID)
}

// FormatUserInput prefixes text with the time it was sent and the sender, so
// the model sees when each turn happened.
func FormatUserInput(sent time.Time, name, text string) string {
	return fmt.Sprintf("%s, %s - %s: %s", sent.Format(time.RFC3339), sent.Weekday(), name, text)
}

// userLocks hands out one mutex per user. Entries are dropped once nobody
// holds or waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: map[string]*userLock{}}
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
