package chatbridge

import (
	"context"
	"testing"
	"time"

	"github.com/boat-builder/chatbridge/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Reply(t *testing.T) {
	pod := newTestPod(echoCompleter(), newMemStorage(nil))
	defer pod.Store().Close()

	sess := pod.NewSession(context.Background(), ann)
	defer sess.Close()
	assert.NotEmpty(t, sess.ID())

	require.NoError(t, sess.In("Hello"))
	assert.Equal(t, Response{Content: "echo: Hello", Type: ResponseTypeText}, sess.Out())
	assert.Equal(t, ResponseTypeEnd, sess.Out().Type)
	// exhausted sessions keep reporting the end
	assert.Equal(t, ResponseTypeEnd, sess.Out().Type)
}

func TestSession_ErrorReply(t *testing.T) {
	pod := newTestPod(failingCompleter(), newMemStorage(nil))
	defer pod.Store().Close()

	sess := pod.NewSession(context.Background(), ann)
	require.NoError(t, sess.In("Hello"))
	response := sess.Out()
	assert.Equal(t, ErrorReply, response.Content)
	assert.Equal(t, ResponseTypeError, response.Type)
	assert.ErrorIs(t, response.Err, errModelDown)
	assert.Equal(t, ResponseTypeEnd, sess.Out().Type)
}

func TestSession_ClosedBeforeInput(t *testing.T) {
	pod := newTestPod(echoCompleter(), newMemStorage(nil))
	defer pod.Store().Close()

	sess := pod.NewSession(context.Background(), ann)
	sess.Close()
	assert.ErrorIs(t, sess.In("Hello"), ErrSessionClosed)
	assert.Equal(t, ResponseTypeEnd, sess.Out().Type)
	_, ok := pod.Store().Get(ann.ID)
	assert.False(t, ok)
}

func TestSession_AbandonedTurnCommitsNothing(t *testing.T) {
	started := make(chan struct{})
	client := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (*llm.Completion, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	storage := newMemStorage(nil)
	pod := newTestPod(client, storage)
	defer pod.Store().Close()

	sess := pod.NewSession(context.Background(), ann)
	require.NoError(t, sess.In("Hello"))
	<-started
	sess.Close()
	assert.Equal(t, ResponseTypeEnd, sess.Out().Type)

	_, ok := pod.Store().Get(ann.ID)
	assert.False(t, ok)
	_, saves := storage.saved()
	assert.Zero(t, saves)
}

func TestSession_QueuedTurnsDoNotStarveOtherUsers(t *testing.T) {
	release := make(chan struct{})
	annStarted := make(chan struct{}, 3)
	client := llm.CompleterFunc(func(_ context.Context, req llm.Request) (*llm.Completion, error) {
		if req.User == ann.ID {
			annStarted <- struct{}{}
			<-release
		}
		return &llm.Completion{Message: llm.AssistantMessage("ok")}, nil
	})
	pod := newTestPod(client, newMemStorage(nil))
	defer pod.Store().Close()
	ctx := context.Background()

	var annSessions []*Session
	for i := 0; i < 3; i++ {
		sess := pod.NewSession(ctx, ann)
		defer sess.Close()
		require.NoError(t, sess.In("Hello"))
		annSessions = append(annSessions, sess)
	}
	<-annStarted

	bob := pod.NewSession(ctx, llm.User{ID: "7", Name: "Bob"})
	defer bob.Close()
	require.NoError(t, bob.In("Hey"))

	done := make(chan Response, 1)
	go func() { done <- bob.Out() }()
	select {
	case response := <-done:
		assert.Equal(t, Response{Content: "ok", Type: ResponseTypeText}, response)
	case <-time.After(2 * time.Second):
		t.Fatal("turn for Bob waited behind turns queued for Ann")
	}

	close(release)
	for _, sess := range annSessions {
		assert.Equal(t, ResponseTypeText, sess.Out().Type)
	}
	mem, ok := pod.Store().Get(ann.ID)
	require.True(t, ok)
	assert.Len(t, mem.History(), 6)
}
