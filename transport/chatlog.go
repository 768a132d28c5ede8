package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/boat-builder/chatbridge/llm"
)

// ChatLog appends conversation text to per-user daily files:
//
//	<dir>/<user name>/chat_YYYYMMDD.txt
//	<dir>/<user name>/errors_YYYYMMDD.txt
//
// Names that cannot be a single directory below dir are replaced by the user id.
type ChatLog struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewChatLog(dir string) *ChatLog {
	return &ChatLog{dir: dir, now: time.Now}
}

func (l *ChatLog) Chat(user llm.User, text string) error {
	return l.write(user, "chat", text)
}

func (l *ChatLog) Error(user llm.User, text string) error {
	return l.write(user, "errors", text)
}

const unknownUserDir = "unknown"

func userDir(user llm.User) string {
	for _, name := range []string{user.Name, user.ID} {
		if safeDirName(name) {
			return name
		}
	}
	return unknownUserDir
}

func safeDirName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func (l *ChatLog) write(user llm.User, kind, text string) error {
	if l == nil || l.dir == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Join(l.dir, userDir(user))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.txt", kind, l.now().Format("20060102"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open chat log: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(text + "\n\n"); err != nil {
		return fmt.Errorf("failed to write chat log: %w", err)
	}
	return nil
}
