package chatbridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/boat-builder/chatbridge/llm"
	"github.com/boat-builder/chatbridge/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetOrCreatePutRemove(t *testing.T) {
	store := NewStore(newMemStorage(nil), testMemoryFactory(nil))
	defer store.Close()

	_, ok := store.Get("1")
	assert.False(t, ok)

	m, err := store.GetOrCreate("1")
	require.NoError(t, err)
	again, err := store.GetOrCreate("1")
	require.NoError(t, err)
	assert.Same(t, m, again)

	fresh, err := store.New()
	require.NoError(t, err)
	store.Put("2", fresh)
	assert.Equal(t, 2, store.Len())

	assert.True(t, store.Remove("1"))
	assert.False(t, store.Remove("1"))
	assert.Equal(t, 1, store.Len())
}

func TestStore_LoadSkipsCorruptUsers(t *testing.T) {
	storage := newMemStorage(map[string]memory.State{
		"good": {MessageHistory: []llm.Message{llm.UserMessage("hi")}, Summary: "s"},
		"bad":  {MessageHistory: []llm.Message{{Role: "robot", Content: "beep"}}},
	})
	store := NewStore(storage, testMemoryFactory(nil))
	defer store.Close()

	require.NoError(t, store.Load(context.Background()))
	good, ok := store.Get("good")
	require.True(t, ok)
	assert.Equal(t, "s", good.Summary())
	_, ok = store.Get("bad")
	assert.False(t, ok)
}

func TestStore_PersistWritesSnapshot(t *testing.T) {
	storage := newMemStorage(nil)
	store := NewStore(storage, testMemoryFactory(nil))
	defer store.Close()
	ctx := context.Background()

	m, err := store.GetOrCreate("1")
	require.NoError(t, err)
	require.NoError(t, m.Update(ctx, []llm.Message{llm.UserMessage("a")}, llm.User{ID: "1"}))
	require.NoError(t, store.Persist(ctx))

	users, saves := storage.saved()
	assert.Equal(t, 1, saves)
	assert.Equal(t, []llm.Message{llm.UserMessage("a")}, users["1"].MessageHistory)
}

func TestStore_ConcurrentPersistKeepsEveryUser(t *testing.T) {
	storage := newMemStorage(nil)
	store := NewStore(storage, testMemoryFactory(nil))
	defer store.Close()
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m, err := store.GetOrCreate(id)
			assert.NoError(t, err)
			assert.NoError(t, m.Update(ctx, []llm.Message{llm.UserMessage(id)}, llm.User{ID: id}))
			assert.NoError(t, store.Persist(ctx))
		}(id)
	}
	wg.Wait()

	users, saves := storage.saved()
	assert.LessOrEqual(t, saves, len(ids))
	for _, id := range ids {
		assert.Equal(t, []llm.Message{llm.UserMessage(id)}, users[id].MessageHistory, id)
	}
}

func TestStore_PersistError(t *testing.T) {
	storage := newMemStorage(nil)
	storage.saveErr = errors.New("disk full")
	store := NewStore(storage, testMemoryFactory(nil))
	defer store.Close()

	assert.EqualError(t, store.Persist(context.Background()), "disk full")
}

func TestStore_Close(t *testing.T) {
	storage := newMemStorage(nil)
	store := NewStore(storage, testMemoryFactory(nil))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Persist(context.Background()), ErrStoreClosed)
	assert.True(t, storage.closed)
}
