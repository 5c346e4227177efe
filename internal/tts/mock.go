package tts

import (
	"context"
	"encoding/base64"
	"time"
)

type mockSynth struct {
	sampleRate int
	channels   int
	duration   time.Duration
}

// NewMockSynth returns a synthesizer that answers with 200ms of silence.
func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels, duration: 200 * time.Millisecond}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, classify(ctx.Err())
	case <-time.After(50 * time.Millisecond):
	}
	frames := int(int64(m.sampleRate) * int64(m.duration) / int64(time.Second))
	pcm := make([]byte, frames*m.channels*2)
	return Result{Audio: []string{base64.StdEncoding.EncodeToString(pcm)}}, nil
}
