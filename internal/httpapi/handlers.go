package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/loqalabs/loqa-tts/internal/audio"
	"github.com/loqalabs/loqa-tts/internal/catalog"
	"github.com/loqalabs/loqa-tts/internal/clip"
	"github.com/loqalabs/loqa-tts/internal/prompt"
	"github.com/loqalabs/loqa-tts/internal/speech"
	"github.com/loqalabs/loqa-tts/internal/tts"
)

const wavContentType = "audio/wav"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type catalogResponse struct {
	Voices  []catalog.Voice  `json:"voices"`
	Pitches []catalog.Option `json:"pitches"`
	Styles  []catalog.Option `json:"styles"`
}

type speechRequest struct {
	SessionID string        `json:"session_id"`
	Text      string        `json:"text"`
	Voice     string        `json:"voice"`
	Pitch     string        `json:"pitch"`
	Style     string        `json:"style"`
	Rules     []prompt.Rule `json:"rules"`
}

type speechResponse struct {
	ClipID     string     `json:"clip_id"`
	URL        string     `json:"url"`
	Prompt     string     `json:"prompt"`
	Voice      string     `json:"voice"`
	Bytes      int        `json:"bytes"`
	DurationMS int64      `json:"duration_ms"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (s *Server) handleReady(c *fiber.Ctx) error {
	if s.ready() {
		return c.SendString("ready")
	}
	return c.Status(fiber.StatusServiceUnavailable).SendString("not ready")
}

func (s *Server) handleCatalog(c *fiber.Ctx) error {
	return c.JSON(catalogResponse{
		Voices:  catalog.Voices(),
		Pitches: catalog.Pitches(),
		Styles:  catalog.Styles(),
	})
}

func (s *Server) handleSpeech(c *fiber.Ctx) error {
	var req speechRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: speech.CodeValidation, Message: "Request body is not valid JSON."})
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	out, err := s.gen.Generate(ctx, speech.Request{
		SessionID: req.SessionID,
		Text:      req.Text,
		Voice:     req.Voice,
		Pitch:     req.Pitch,
		Style:     req.Style,
		Rules:     req.Rules,
	})
	if err != nil {
		return s.writeGenerationError(c, err)
	}

	h := s.clips.Acquire(req.SessionID, out.WAV)
	resp := speechResponse{
		ClipID:     h.ID,
		URL:        "/v1/clips/" + h.ID,
		Prompt:     out.Prompt,
		Voice:      out.Voice,
		Bytes:      h.Size,
		DurationMS: out.Duration.Milliseconds(),
	}
	if !h.ExpiresAt.IsZero() {
		expires := h.ExpiresAt.UTC()
		resp.ExpiresAt = &expires
	}
	c.Location(resp.URL)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) handleGetClip(c *fiber.Ctx) error {
	_, wav, err := s.clips.Open(c.Params("id"))
	if errors.Is(err, clip.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Clip not found or expired.")
	}
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, wavContentType)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(wav)
}

func (s *Server) handleDeleteClip(c *fiber.Ctx) error {
	if err := s.clips.Release(c.Params("id")); err != nil {
		if errors.Is(err, clip.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Clip not found or expired.")
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	out, err := s.gen.Preview(ctx, c.Params("id"))
	if err != nil {
		return s.writeGenerationError(c, err)
	}
	c.Set(fiber.HeaderContentType, wavContentType)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(out.WAV)
}

func (s *Server) writeGenerationError(c *fiber.Ctx, err error) error {
	code, message := speech.Describe(err)
	return c.Status(statusFor(err)).JSON(errorBody{Error: code, Message: message})
}

func statusFor(err error) int {
	var valErr *speech.ValidationError
	var synthErr *tts.SynthesisError
	var decErr *audio.DecodeError
	switch {
	case errors.As(err, &valErr):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &decErr), errors.As(err, &synthErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
