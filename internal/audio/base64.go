package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// DecodeError reports a payload that is not valid base64. Segment is the
// index of the failing payload within a multi-segment result, or -1 for a
// single payload.
type DecodeError struct {
	Segment int
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Segment >= 0 {
		return fmt.Sprintf("decode audio segment %d: %v", e.Segment, e.Err)
	}
	return fmt.Sprintf("decode audio: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeBase64 decodes a standard-encoding base64 payload.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Segment: -1, Err: err}
	}
	return data, nil
}

// DecodeSegments decodes each payload and concatenates the results in order.
// Nothing is returned if any segment fails.
func DecodeSegments(segments []string) ([]byte, error) {
	var pcm []byte
	for i, s := range segments {
		data, err := DecodeBase64(s)
		if err != nil {
			var decErr *DecodeError
			if errors.As(err, &decErr) {
				decErr.Segment = i
			}
			return nil, err
		}
		pcm = append(pcm, data...)
	}
	return pcm, nil
}
