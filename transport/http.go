package transport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/boat-builder/chatbridge"
	"github.com/boat-builder/chatbridge/llm"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type ChatRequest struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Text      string `json:"text"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type ResetRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// HTTPServer exposes the handler over HTTP:
//
//	POST /v1/chat   {"message_id","user_id","user_name","text"} -> {"reply"}
//	POST /v1/reset  {"user_id","user_name"}                      -> {"reply"}
//	GET  /v1/usage/:user_id                                      -> {"input_tokens","output_tokens","total_cost"}
//	GET  /healthz
type HTTPServer struct {
	app     *fiber.App
	handler *Handler
	logger  *slog.Logger
}

func NewHTTPServer(handler *Handler) *HTTPServer {
	s := &HTTPServer{handler: handler, logger: slog.Default()}
	app := fiber.New(fiber.Config{
		AppName:               "chatbridge",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Header: "X-Request-ID"}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	v1 := app.Group("/v1")
	v1.Post("/chat", s.chat)
	v1.Post("/reset", s.reset)
	v1.Get("/usage/:user_id", s.usage)
	s.app = app
	return s
}

func (s *HTTPServer) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *HTTPServer) App() *fiber.App {
	return s.app
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Serve(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http transport listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down http transport")
		return s.app.Shutdown()
	}
}

func (s *HTTPServer) chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.Text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id and text are required")
	}
	user := llm.User{ID: req.UserID, Name: displayName(req.UserName, req.UserID)}

	reply, ok := s.handler.Handle(c.UserContext(), Message{ID: req.MessageID, User: user, Text: req.Text})
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(ChatResponse{Reply: reply})
}

func (s *HTTPServer) reset(c *fiber.Ctx) error {
	var req ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}
	user := llm.User{ID: req.UserID, Name: displayName(req.UserName, req.UserID)}

	reply, ok := s.handler.Handle(c.UserContext(), Message{User: user, Text: ResetCommand})
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(ChatResponse{Reply: reply})
}

func (s *HTTPServer) usage(c *fiber.Ctx) error {
	cost, ok := s.handler.Usage(c.Params("user_id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no usage recorded")
	}
	return c.JSON(cost)
}

func (s *HTTPServer) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	s.logger.Error("http request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": chatbridge.ErrorReply})
}

func displayName(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
