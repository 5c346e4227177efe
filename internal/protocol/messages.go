package protocol

import "time"

// PronunciationRule mirrors prompt.Rule on the wire.
type PronunciationRule struct {
	Word        string `json:"word"`
	Replacement string `json:"replacement"`
	WholeWord   bool   `json:"whole_word,omitempty"`
}

// TTSRequest asks the runtime to generate speech.
type TTSRequest struct {
	SessionID string              `json:"session_id"`
	Text      string              `json:"text"`
	Voice     string              `json:"voice,omitempty"`
	Pitch     string              `json:"pitch,omitempty"`
	Style     string              `json:"style,omitempty"`
	Rules     []PronunciationRule `json:"rules,omitempty"`
	Target    string              `json:"target,omitempty"`
	TraceID   string              `json:"trace_id,omitempty"`
}

// TTSAudio carries a complete WAV clip for one request.
type TTSAudio struct {
	SessionID  string `json:"session_id"`
	Target     string `json:"target,omitempty"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	DurationMS int64  `json:"duration_ms"`
	WAV        []byte `json:"wav"`
}

// TTSStatus closes out a request. Error is a machine-readable code and
// Message the text meant for the user.
type TTSStatus struct {
	SessionID string    `json:"session_id"`
	Target    string    `json:"target,omitempty"`
	Completed bool      `json:"completed"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectTTSRequest = "tts.request"
	SubjectTTSAudio   = "tts.audio"
	SubjectTTSDone    = "tts.done"
)
