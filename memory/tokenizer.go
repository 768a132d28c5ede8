package memory

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts model tokens. Implementations must be deterministic and
// must not fail: a count that cannot be computed is reported as 0.
type Tokenizer interface {
	Count(text string) int
}

// TokenizerFunc adapts a function to the Tokenizer interface.
type TokenizerFunc func(text string) int

func (f TokenizerFunc) Count(text string) int {
	return f(text)
}

const DefaultEncoding = "cl100k_base"

// TiktokenCounter counts tokens with a BPE encoding. The encoding is loaded
// lazily and the load is retried on the next call after a failure.
type TiktokenCounter struct {
	encoding string
	mu       sync.Mutex
	enc      *tiktoken.Tiktoken
	logger   *slog.Logger
}

func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenCounter{encoding: encoding, logger: slog.Default()}
}

func (t *TiktokenCounter) Count(text string) int {
	enc, err := t.encoder()
	if err != nil {
		t.logger.Error("failed to count tokens", "encoding", t.encoding, "error", err)
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

func (t *TiktokenCounter) encoder() (*tiktoken.Tiktoken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enc != nil {
		return t.enc, nil
	}
	enc, err := tiktoken.GetEncoding(t.encoding)
	if err != nil {
		return nil, err
	}
	t.enc = enc
	return enc, nil
}

// HeuristicCounter estimates one token per four runes. It needs no encoding
// files and suits offline deployments.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	runes := utf8.RuneCountInString(text)
	return (runes + 3) / 4
}
