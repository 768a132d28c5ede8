package transport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boat-builder/chatbridge/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatLog_Append(t *testing.T) {
	dir := t.TempDir()
	chatLog := NewChatLog(dir)
	chatLog.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, chatLog.Chat(ann, "one"))
	require.NoError(t, chatLog.Chat(ann, "two"))
	require.NoError(t, chatLog.Error(ann, "boom"))

	data, err := os.ReadFile(filepath.Join(dir, "Ann", "chat_20240315.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo\n\n", string(data))
	data, err = os.ReadFile(filepath.Join(dir, "Ann", "errors_20240315.txt"))
	require.NoError(t, err)
	assert.Equal(t, "boom\n\n", string(data))
}

func TestChatLog_StaysInsideDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "logs")
	chatLog := NewChatLog(dir)
	chatLog.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }

	for _, tc := range []struct {
		user llm.User
		want string
	}{
		{llm.User{ID: "42", Name: ".."}, "42"},
		{llm.User{ID: "43", Name: "."}, "43"},
		{llm.User{ID: "44", Name: ""}, "44"},
		{llm.User{ID: "45", Name: "../../etc"}, "45"},
		{llm.User{ID: "..", Name: ".."}, unknownUserDir},
	} {
		require.NoError(t, chatLog.Chat(tc.user, "hello"))
		assert.FileExists(t, filepath.Join(dir, tc.want, "chat_20240315.txt"), "user %q", tc.user.Name)
	}

	outside, err := filepath.Glob(filepath.Join(root, "chat_*.txt"))
	require.NoError(t, err)
	assert.Empty(t, outside)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "logs", entries[0].Name())
}

func TestChatLog_Disabled(t *testing.T) {
	var chatLog *ChatLog
	assert.NoError(t, chatLog.Chat(ann, "hello"))
	assert.NoError(t, NewChatLog("").Chat(ann, "hello"))
}
