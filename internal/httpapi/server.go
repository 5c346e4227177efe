// Package httpapi exposes speech generation, clip playback and voice
// previews over HTTP and a websocket stream.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/loqalabs/loqa-tts/internal/clip"
	"github.com/loqalabs/loqa-tts/internal/speech"
)

// Options tune the server. Zero values fall back to defaults.
type Options struct {
	// Timeout bounds one generation.
	Timeout time.Duration
	// Ready reports whether dependencies are up; nil means always ready.
	Ready     func() bool
	BodyLimit int
}

type Server struct {
	app     *fiber.App
	ctx     context.Context
	gen     *speech.Generator
	clips   *clip.Store
	timeout time.Duration
	ready   func() bool
	logger  *slog.Logger
}

// New builds the routes. ctx bounds every generation the server starts.
func New(ctx context.Context, gen *speech.Generator, clips *clip.Store, opts Options, log *slog.Logger) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = speech.DefaultTimeout
	}
	if opts.Ready == nil {
		opts.Ready = func() bool { return true }
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 1 << 20
	}

	s := &Server{
		ctx:     ctx,
		gen:     gen,
		clips:   clips,
		timeout: opts.Timeout,
		ready:   opts.Ready,
		logger:  log.With(slog.String("component", "http-api")),
	}

	app := fiber.New(fiber.Config{
		AppName:               "loqa-tts",
		DisableStartupMessage: true,
		Immutable:             true,
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Get("/healthz", s.handleHealth)
	app.Get("/readyz", s.handleReady)

	v1 := app.Group("/v1")
	v1.Get("/catalog", s.handleCatalog)
	v1.Post("/speech", s.handleSpeech)
	v1.Get("/clips/:id", s.handleGetClip)
	v1.Delete("/clips/:id", s.handleDeleteClip)
	v1.Post("/voices/:id/preview", s.handlePreview)

	v1.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/stream", websocket.New(s.handleStream))

	s.app = app
	return s
}

// App exposes the underlying router, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http api listening", slog.String("addr", ln.Addr().String()))
	return s.app.Listener(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: codeForStatus(fe.Code), Message: fe.Message})
	}
	s.logger.Error("unhandled http error", slog.String("path", c.Path()), slog.String("error", err.Error()))
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Error: speech.CodeInternal, Message: "An unknown error occurred."})
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "too_large"
	case fiber.StatusUpgradeRequired:
		return "upgrade_required"
	default:
		if status >= 500 {
			return speech.CodeInternal
		}
		return "bad_request"
	}
}
