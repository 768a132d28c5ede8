package chatbridge

import (
	"context"
	"testing"

	"github.com/boat-builder/chatbridge/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageTracker(t *testing.T) {
	tracker := NewUsageTracker()
	_, ok := tracker.Cost("1")
	assert.False(t, ok)

	tracker.Record("1", "gpt-4o-mini", llm.Usage{PromptTokens: 1000000, CompletionTokens: 1000000})
	tracker.Record("1", "gpt-4o-mini", llm.Usage{PromptTokens: 1000000})
	cost, ok := tracker.Cost("1")
	require.True(t, ok)
	assert.Equal(t, int64(2000000), cost.InputTokens)
	assert.InDelta(t, 2*GPT4oMiniInputRate+GPT4oMiniOutputRate, cost.TotalCost, 1e-9)

	tracker.Record("2", "llama3-70b", llm.Usage{PromptTokens: 10, CompletionTokens: 5})
	cost, ok = tracker.Cost("2")
	require.True(t, ok)
	assert.Equal(t, int64(5), cost.OutputTokens)
	assert.Zero(t, cost.TotalCost)

	tracker.Reset("1")
	_, ok = tracker.Cost("1")
	assert.False(t, ok)
}

func TestUsageTracker_Track(t *testing.T) {
	tracker := NewUsageTracker()
	client := tracker.Track(echoCompleter())
	ctx := context.WithValue(context.Background(), llm.UserIDKey, "42")

	_, err := client.Complete(ctx, llm.Request{Model: "gpt-4o", Messages: []llm.Message{llm.UserMessage("hi")}})
	require.NoError(t, err)
	cost, ok := tracker.Cost("42")
	require.True(t, ok)
	assert.Equal(t, int64(100), cost.InputTokens)

	// without a user in the context the request's user is charged
	_, err = client.Complete(context.Background(), llm.Request{Model: "gpt-4o", Messages: []llm.Message{llm.UserMessage("hi")}, User: "7"})
	require.NoError(t, err)
	_, ok = tracker.Cost("7")
	assert.True(t, ok)

	_, err = tracker.Track(failingCompleter()).Complete(ctx, llm.Request{Model: "gpt-4o"})
	assert.ErrorIs(t, err, errModelDown)
	cost, _ = tracker.Cost("42")
	assert.Equal(t, int64(100), cost.InputTokens)

	assert.Nil(t, tracker.Track(nil))
}
