package speech

import (
	"context"
	"errors"

	"github.com/loqalabs/loqa-tts/internal/audio"
	"github.com/loqalabs/loqa-tts/internal/tts"
)

// ValidationError rejects a request before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// Error codes reported to callers alongside a user-facing message.
const (
	CodeValidation = "validation_error"
	CodeDecode     = "decode_error"
	CodeTimeout    = "timeout"
	CodeInternal   = "internal_error"
)

// Describe maps a Generate or Preview error to a stable code and the message
// shown to the user.
func Describe(err error) (code, message string) {
	var valErr *ValidationError
	var synthErr *tts.SynthesisError
	var decErr *audio.DecodeError
	switch {
	case errors.As(err, &valErr):
		return CodeValidation, valErr.Message
	case errors.As(err, &decErr):
		return CodeDecode, "The audio returned by the API could not be decoded."
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout, "Speech generation timed out."
	case errors.As(err, &synthErr):
		return string(synthErr.Kind), synthErr.UserMessage()
	default:
		return CodeInternal, "An unknown error occurred."
	}
}
