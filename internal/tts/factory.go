package tts

import (
	"context"
	"fmt"

	"github.com/loqalabs/loqa-tts/internal/config"
)

// New builds the synthesizer selected by cfg.Mode.
func New(ctx context.Context, cfg config.TTSConfig, audio config.AudioConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "gemini":
		return NewGeminiSynth(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, Endpoint: cfg.Endpoint})
	case "exec":
		return NewExecSynth(cfg.Command, audio.SampleRate, audio.Channels)
	case "mock":
		return NewMockSynth(audio.SampleRate, audio.Channels), nil
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}
