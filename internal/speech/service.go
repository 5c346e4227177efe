package speech

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-tts/internal/bus"
	"github.com/loqalabs/loqa-tts/internal/prompt"
	"github.com/loqalabs/loqa-tts/internal/protocol"
)

// DefaultTimeout bounds a single bus request when none is configured.
const DefaultTimeout = 45 * time.Second

// Service answers speech requests arriving on the bus.
type Service struct {
	bus     *bus.Client
	gen     *Generator
	timeout time.Duration
	sub     *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewService(parent context.Context, busClient *bus.Client, gen *Generator, timeout time.Duration, log *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:     busClient,
		gen:     gen,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.With(slog.String("component", "speech-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectTTSRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.Info("listening for speech requests", slog.String("subject", protocol.SubjectTTSRequest))
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil && s.sub.IsValid() }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TTSRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode tts request", slogError(err))
		s.finish(msg, protocol.TTSStatus{
			Error:     CodeValidation,
			Message:   "Request body is not valid JSON.",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		out, err := s.gen.Generate(ctx, FromWire(req))
		status := protocol.TTSStatus{SessionID: req.SessionID, Target: req.Target, Timestamp: time.Now().UTC()}
		if err != nil {
			status.Error, status.Message = Describe(err)
			s.finish(msg, status)
			return
		}

		format := s.gen.Format()
		packet := protocol.TTSAudio{
			SessionID:  req.SessionID,
			Target:     req.Target,
			Voice:      out.Voice,
			SampleRate: format.SampleRate,
			Channels:   format.Channels,
			DurationMS: out.Duration.Milliseconds(),
			WAV:        out.WAV,
		}
		if err := s.bus.PublishJSON(protocol.SubjectTTSAudio, packet); err != nil {
			s.logger.Warn("failed to publish tts audio", slogError(err))
			status.Error, status.Message = CodeInternal, "Generated audio could not be delivered."
			s.finish(msg, status)
			return
		}
		status.Completed = true
		s.finish(msg, status)
	}()
}

// finish publishes the status on the done subject and, for request-reply
// callers, on the reply inbox.
func (s *Service) finish(msg *nats.Msg, status protocol.TTSStatus) {
	if err := s.bus.PublishJSON(protocol.SubjectTTSDone, status); err != nil {
		s.logger.Warn("failed to publish tts status", slogError(err))
	}
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Warn("failed to marshal tts reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to reply to tts request", slogError(err))
	}
}

// FromWire converts a bus or stream request into a generation request.
func FromWire(req protocol.TTSRequest) Request {
	out := Request{
		SessionID: req.SessionID,
		Text:      req.Text,
		Voice:     req.Voice,
		Pitch:     req.Pitch,
		Style:     req.Style,
	}
	for _, r := range req.Rules {
		out.Rules = append(out.Rules, prompt.Rule{Word: r.Word, Replacement: r.Replacement, WholeWord: r.WholeWord})
	}
	return out
}
