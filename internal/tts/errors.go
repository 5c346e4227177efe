package tts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies synthesis failures.
type ErrorKind string

const (
	KindNoAudio       ErrorKind = "no_audio_returned"
	KindInvalidAPIKey ErrorKind = "invalid_api_key"
	KindGeneric       ErrorKind = "generic_failure"
)

// ErrNoAudio is wrapped by SynthesisError when the backend answered without audio.
var ErrNoAudio = errors.New("no audio data in response")

// SynthesisError is returned by every backend. None of the kinds are retried.
type SynthesisError struct {
	Kind ErrorKind
	Err  error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the person who asked for speech.
func (e *SynthesisError) UserMessage() string {
	switch e.Kind {
	case KindNoAudio:
		return "No audio data received from API. This might be due to content filtering or an API error."
	case KindInvalidAPIKey:
		return "The provided API key is not valid. Please check your configuration."
	default:
		msg := "An unknown error occurred."
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return "Failed to generate speech: " + msg
	}
}

func noAudio() *SynthesisError {
	return &SynthesisError{Kind: KindNoAudio, Err: ErrNoAudio}
}

// classify maps a backend error onto the taxonomy. Errors that already carry
// a kind are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		return err
	}
	if strings.Contains(err.Error(), "API key not valid") {
		return &SynthesisError{Kind: KindInvalidAPIKey, Err: err}
	}
	return &SynthesisError{Kind: KindGeneric, Err: err}
}
