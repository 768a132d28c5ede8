package chatbridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/boat-builder/chatbridge/llm"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Session carries one user message to the Pod off the caller's goroutine and
// streams the outcome back. Out yields a text or error response followed by
// an end response.
type Session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	inUserChannel  chan string
	outUserChannel chan Response

	user   llm.User
	logger *slog.Logger
}

// NewSession creates a session for user and schedules it on the Pod's worker pool.
func (p *Pod) NewSession(ctx context.Context, user llm.User) *Session {
	sessionID, err := gonanoid.New()
	if err != nil {
		panic(err)
	}
	ctx, cancel := context.WithCancel(ctx)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	s := &Session{
		ctx:    ctx,
		cancel: cancel,

		inUserChannel:  make(chan string),
		outUserChannel: make(chan Response),

		user:   user,
		logger: p.logger,
	}
	go p.run(s)
	return s
}

const sessionIDKey = llm.ContextKey("sessionID")

func (s *Session) ID() string {
	return s.ctx.Value(sessionIDKey).(string)
}

// In hands the user message to the session. It fails once the session is closed.
func (s *Session) In(userMessage string) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	select {
	case s.inUserChannel <- userMessage:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// Out retrieves the next response, blocking until one is available. A closed
// session yields an end response.
func (s *Session) Out() Response {
	response, ok := <-s.outUserChannel
	if !ok {
		return Response{Type: ResponseTypeEnd}
	}
	return response
}

// Close ends the session. A turn still waiting for the model is abandoned
// before anything is committed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
}

func (s *Session) send(response Response) bool {
	select {
	case s.outUserChannel <- response:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// run waits for the user message, then answers it through Respond.
func (p *Pod) run(s *Session) {
	defer close(s.outUserChannel)
	defer s.Close()

	var userMessage string
	select {
	case <-s.ctx.Done():
		return
	case userMessage = <-s.inUserChannel:
	}

	reply, err := p.Respond(s.ctx, userMessage, s.user)
	if s.ctx.Err() != nil {
		s.logger.Info("session closed before the turn finished", "sessionID", s.ID(), "userID", s.user.ID)
		return
	}

	response := Response{Content: reply, Type: ResponseTypeText}
	if err != nil {
		s.logger.Error("session turn failed", "sessionID", s.ID(), "userID", s.user.ID, "error", err)
		response.Type = ResponseTypeError
		response.Err = err
	}
	if s.send(response) {
		s.send(Response{Type: ResponseTypeEnd})
	}
}
