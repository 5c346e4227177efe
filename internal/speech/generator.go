// Package speech runs the text-to-WAV pipeline: validation, prompt building,
// remote synthesis, base64 decoding and WAV encoding.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-tts/internal/audio"
	"github.com/loqalabs/loqa-tts/internal/catalog"
	"github.com/loqalabs/loqa-tts/internal/prompt"
	"github.com/loqalabs/loqa-tts/internal/tts"
)

// Request is one generation as supplied by a caller.
type Request struct {
	SessionID string
	Text      string
	Voice     string
	Pitch     string
	Style     string
	Rules     []prompt.Rule
}

// Output is a playable clip and what produced it.
type Output struct {
	Prompt   string
	Voice    string
	WAV      []byte
	PCMBytes int
	Duration time.Duration
}

// Options are the operator-level defaults applied to every request.
type Options struct {
	DefaultVoice string
	DefaultPitch string
	DefaultStyle string
	Format       audio.Format
	// Rules run before the request's own rules.
	Rules []prompt.Rule
}

type Generator struct {
	synth  tts.Synthesizer
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	requests metric.Int64Counter
	latency  metric.Float64Histogram
	bytesOut metric.Int64Counter
}

func NewGenerator(synth tts.Synthesizer, opts Options, logger *slog.Logger) *Generator {
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat()
	}
	g := &Generator{
		synth:  synth,
		opts:   opts,
		logger: logger.With(slog.String("component", "speech-generator")),
		tracer: otel.Tracer("github.com/loqalabs/loqa-tts/speech"),
	}
	if err := g.initMetrics(); err != nil {
		g.logger.Warn("failed to initialize metrics", slogError(err))
	}
	return g
}

func (g *Generator) initMetrics() error {
	meter := otel.Meter("github.com/loqalabs/loqa-tts/speech")
	var err error
	if g.requests, err = meter.Int64Counter("loqa.tts.requests", metric.WithDescription("Speech generation requests by outcome")); err != nil {
		return err
	}
	if g.latency, err = meter.Float64Histogram("loqa.tts.latency", metric.WithUnit("ms"), metric.WithDescription("End-to-end generation latency")); err != nil {
		return err
	}
	if g.bytesOut, err = meter.Int64Counter("loqa.tts.audio_bytes", metric.WithUnit("By"), metric.WithDescription("WAV bytes produced")); err != nil {
		return err
	}
	return nil
}

// Format is the PCM layout the generator assumes for synthesizer output.
func (g *Generator) Format() audio.Format { return g.opts.Format }

// Generate validates req, synthesizes it once and returns a WAV clip.
func (g *Generator) Generate(ctx context.Context, req Request) (Output, error) {
	if strings.TrimSpace(req.Text) == "" {
		err := &ValidationError{Field: "text", Message: "Please enter some text to generate speech."}
		g.record(ctx, "generate", time.Now(), Output{}, err)
		return Output{}, err
	}

	rules := req.Rules
	if len(g.opts.Rules) > 0 {
		rules = append(append([]prompt.Rule(nil), g.opts.Rules...), req.Rules...)
	}
	text := prompt.Build(prompt.Input{
		Text:    req.Text,
		Rules:   rules,
		StyleID: coalesce(req.Style, g.opts.DefaultStyle),
		PitchID: coalesce(req.Pitch, g.opts.DefaultPitch),
	})
	return g.run(ctx, "generate", req.SessionID, text, coalesce(req.Voice, g.opts.DefaultVoice))
}

// Preview speaks a fixed sample sentence in the given voice with no style,
// pitch or pronunciation rules.
func (g *Generator) Preview(ctx context.Context, voiceID string) (Output, error) {
	voice, ok := catalog.LookupVoice(voiceID)
	if !ok {
		err := &ValidationError{Field: "voice", Message: fmt.Sprintf("Unknown voice %q.", voiceID)}
		g.record(ctx, "preview", time.Now(), Output{}, err)
		return Output{}, err
	}
	text := fmt.Sprintf("This is a sample of the %s voice.", voice.ShortName())
	return g.run(ctx, "preview", "", text, voice.ID)
}

func (g *Generator) run(ctx context.Context, op, sessionID, text, voice string) (Output, error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "speech."+op, trace.WithAttributes(
		attribute.String("tts.voice", voice),
		attribute.Int("tts.prompt_chars", len(text)),
	))
	defer span.End()

	out, err := g.synthesize(ctx, sessionID, text, voice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	g.record(ctx, op, start, out, err)
	return out, err
}

func (g *Generator) synthesize(ctx context.Context, sessionID, text, voice string) (Output, error) {
	res, err := g.synth.Synthesize(ctx, tts.SynthRequest{SessionID: sessionID, Prompt: text, Voice: voice})
	if err != nil {
		return Output{}, err
	}
	pcm, err := audio.DecodeSegments(res.Audio)
	if err != nil {
		return Output{}, err
	}
	return Output{
		Prompt:   text,
		Voice:    voice,
		WAV:      audio.EncodeWAV(pcm, g.opts.Format),
		PCMBytes: len(pcm),
		Duration: audio.Duration(len(pcm), g.opts.Format),
	}, nil
}

func (g *Generator) record(ctx context.Context, op string, start time.Time, out Output, err error) {
	outcome := "ok"
	if err != nil {
		outcome, _ = Describe(err)
	}
	elapsed := time.Since(start)
	attrs := metric.WithAttributes(attribute.String("op", op), attribute.String("outcome", outcome))
	if g.requests != nil {
		g.requests.Add(ctx, 1, attrs)
	}
	if g.latency != nil {
		g.latency.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
	if err != nil {
		g.logger.Warn("speech generation failed",
			slog.String("op", op),
			slog.String("outcome", outcome),
			slogError(err))
		return
	}
	if g.bytesOut != nil {
		g.bytesOut.Add(ctx, int64(len(out.WAV)), attrs)
	}
	g.logger.Info("speech generated",
		slog.String("op", op),
		slog.String("voice", out.Voice),
		slog.Int("wav_bytes", len(out.WAV)),
		slog.Duration("audio", out.Duration),
		slog.Duration("latency", elapsed))
}

func coalesce(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
