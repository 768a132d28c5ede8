package chatbridge

import (
	"context"
	"sync"

	"github.com/boat-builder/chatbridge/llm"
)

type TokenRates struct {
	Input  float64
	Output float64
}

// Pricing constants in dollars per million tokens
const (
	GPT4oInputRate      = 2.5
	GPT4oOutputRate     = 10.0
	GPT4oMiniInputRate  = 0.15
	GPT4oMiniOutputRate = 0.60
	O3MiniInputRate     = 1.10
	O3MiniOutputRate    = 4.40
)

// ModelPricings is a map of model names to their pricing information
var ModelPricings = map[string]TokenRates{
	"gpt-4o": {
		Input:  GPT4oInputRate,
		Output: GPT4oOutputRate,
	},
	"gpt-4o-mini": {
		Input:  GPT4oMiniInputRate,
		Output: GPT4oMiniOutputRate,
	},
	"o3-mini": {
		Input:  O3MiniInputRate,
		Output: O3MiniOutputRate,
	},
	"azure/gpt-4o": {
		Input:  GPT4oInputRate,
		Output: GPT4oOutputRate,
	},
	"azure/gpt-4o-mini": {
		Input:  GPT4oMiniInputRate,
		Output: GPT4oMiniOutputRate,
	},
	"azure/o3-mini": {
		Input:  O3MiniInputRate,
		Output: O3MiniOutputRate,
	},
}

// CostDetails represents accumulated token usage and cost of one user
type CostDetails struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// UsageTracker accumulates completion usage per user, chat and summary calls
// alike. Models without a known price still count tokens.
type UsageTracker struct {
	mu     sync.Mutex
	totals map[string]*CostDetails
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{totals: map[string]*CostDetails{}}
}

// Record adds usage of one call priced at model.
func (u *UsageTracker) Record(userID, model string, usage llm.Usage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	total, ok := u.totals[userID]
	if !ok {
		total = &CostDetails{}
		u.totals[userID] = total
	}
	total.InputTokens += usage.PromptTokens
	total.OutputTokens += usage.CompletionTokens
	if pricing, exists := ModelPricings[model]; exists {
		inputCost := float64(usage.PromptTokens) * pricing.Input / 1000000
		outputCost := float64(usage.CompletionTokens) * pricing.Output / 1000000
		total.TotalCost += inputCost + outputCost
	}
}

// Cost returns the accumulated usage of userID.
func (u *UsageTracker) Cost(userID string) (*CostDetails, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	total, ok := u.totals[userID]
	if !ok {
		return nil, false
	}
	details := *total
	return &details, true
}

func (u *UsageTracker) Reset(userID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.totals, userID)
}

// Track wraps client so every successful call is recorded for the user in
// the context, or the request's user when the context carries none.
func (u *UsageTracker) Track(client llm.Completer) llm.Completer {
	if client == nil {
		return nil
	}
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (*llm.Completion, error) {
		completion, err := client.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		userID, _ := ctx.Value(llm.UserIDKey).(string)
		if userID == "" {
			userID = req.User
		}
		if userID != "" {
			u.Record(userID, req.Model, completion.Usage)
		}
		return completion, nil
	})
}
