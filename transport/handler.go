// Package transport connects chat front ends to the Pod: it filters users,
// drops redelivered messages, routes the reset command and keeps chat logs.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/boat-builder/chatbridge"
	"github.com/boat-builder/chatbridge/llm"
)

const (
	ResetCommand = "/reset"
	ResetReply   = "Your conversation has been reset."
)

// Bridge is what a transport needs from the Pod.
type Bridge interface {
	NewSession(ctx context.Context, user llm.User) *chatbridge.Session
	Reset(ctx context.Context, user llm.User) error
	Cost(userID string) (*chatbridge.CostDetails, bool)
}

// Message is one inbound chat message. ID is the transport's message id and
// may be empty when the transport has none.
type Message struct {
	ID   string
	User llm.User
	Text string
	Sent time.Time
}

type Options struct {
	Allowed func(userID string) bool
	Dedup   *Deduplicator
	ChatLog *ChatLog
	// EchoOnly skips the model and tells the user the bot is in debug mode.
	EchoOnly bool
}

type Handler struct {
	bridge Bridge
	opts   Options
	logger *slog.Logger
}

func NewHandler(bridge Bridge, opts Options) *Handler {
	return &Handler{bridge: bridge, opts: opts, logger: slog.Default()}
}

func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logger
}

// Handle answers msg. ok is false when the message is ignored: the sender is
// not allowed or the message was already delivered.
func (h *Handler) Handle(ctx context.Context, msg Message) (reply string, ok bool) {
	if h.opts.Allowed != nil && !h.opts.Allowed(msg.User.ID) {
		h.logger.Warn("ignoring message from unknown user", "userID", msg.User.ID)
		return "", false
	}
	if h.opts.Dedup != nil && !h.opts.Dedup.Begin(msg.ID) {
		h.logger.Warn("skipping reprocessing of message", "messageID", msg.ID)
		return "", false
	}
	h.logger.Info("received message", "userID", msg.User.ID, "userName", msg.User.Name)

	if strings.TrimSpace(msg.Text) == ResetCommand {
		return h.reset(ctx, msg.User), true
	}
	if h.opts.EchoOnly {
		h.logger.Debug("echo only mode, not calling the model", "userID", msg.User.ID, "messageID", msg.ID)
		return fmt.Sprintf("Bot is currently in debug mode, AI responses will not be generated. User ID: %s, User Name: %s", msg.User.ID, msg.User.Name), true
	}

	sent := msg.Sent
	if sent.IsZero() {
		sent = time.Now()
	}
	input := chatbridge.FormatUserInput(sent, msg.User.Name, msg.Text)
	h.log(msg.User, input, false)

	reply, failed := h.converse(ctx, msg.User, input)
	h.log(msg.User, reply, failed)
	if failed {
		reply = chatbridge.ErrorReply
	}
	return reply, true
}

// converse runs one session and returns its text. failed is set when the
// session reported an error; the text is then the error detail for the log.
func (h *Handler) converse(ctx context.Context, user llm.User, input string) (text string, failed bool) {
	sess := h.bridge.NewSession(ctx, user)
	defer sess.Close()
	if err := sess.In(input); err != nil {
		return err.Error(), true
	}
	for {
		response := sess.Out()
		switch response.Type {
		case chatbridge.ResponseTypeEnd:
			if text == "" && !failed {
				return "session ended without a reply", true
			}
			return text, failed
		case chatbridge.ResponseTypeError:
			text, failed = response.Content, true
			if response.Err != nil {
				text = response.Err.Error()
			}
		default:
			text = response.Content
		}
	}
}

func (h *Handler) reset(ctx context.Context, user llm.User) string {
	h.logger.Info("received reset command", "userID", user.ID)
	if err := h.bridge.Reset(ctx, user); err != nil {
		h.logger.Error("failed to persist reset", "userID", user.ID, "error", err)
		h.log(user, err.Error(), true)
	}
	return ResetReply
}

func (h *Handler) log(user llm.User, text string, failed bool) {
	if h.opts.ChatLog == nil {
		return
	}
	write := h.opts.ChatLog.Chat
	if failed {
		write = h.opts.ChatLog.Error
	}
	if err := write(user, text); err != nil {
		h.logger.Error("failed to write chat log", "userID", user.ID, "error", err)
	}
}

// Usage reports the accumulated usage of userID, if any.
func (h *Handler) Usage(userID string) (*chatbridge.CostDetails, bool) {
	return h.bridge.Cost(userID)
}
