package tts

import "context"

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	SessionID string
	Prompt    string
	Voice     string
}

// Result carries base64-encoded PCM in playback order. Backends that return
// a single payload produce one segment.
type Result struct {
	Audio []string
}

// Empty reports whether the result holds no audio data.
func (r Result) Empty() bool {
	for _, s := range r.Audio {
		if s != "" {
			return false
		}
	}
	return true
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (Result, error)
}
