package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/loqalabs/loqa-tts/internal/protocol"
	"github.com/loqalabs/loqa-tts/internal/speech"
)

// handleStream serves one generation per text frame. Each request is answered
// with a binary WAV frame on success, then a JSON status frame.
func (s *Server) handleStream(c *websocket.Conn) {
	log := s.logger.With(slog.String("remote", c.RemoteAddr().String()))
	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req protocol.TTSRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if err := s.writeStatus(c, protocol.TTSStatus{Error: speech.CodeValidation, Message: "Request body is not valid JSON."}); err != nil {
				return
			}
			continue
		}

		status := protocol.TTSStatus{SessionID: req.SessionID, Target: req.Target}
		out, err := s.generateStream(req)
		if err != nil {
			status.Error, status.Message = speech.Describe(err)
		} else {
			if err := c.WriteMessage(websocket.BinaryMessage, out.WAV); err != nil {
				log.Warn("stream write failed", slog.String("error", err.Error()))
				return
			}
			status.Completed = true
		}
		if err := s.writeStatus(c, status); err != nil {
			log.Warn("stream write failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (s *Server) generateStream(req protocol.TTSRequest) (speech.Output, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	return s.gen.Generate(ctx, speech.FromWire(req))
}

func (s *Server) writeStatus(c *websocket.Conn, status protocol.TTSStatus) error {
	status.Timestamp = time.Now().UTC()
	return c.WriteJSON(status)
}
