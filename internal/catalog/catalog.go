// Package catalog holds the static voice, pitch and style tables offered to
// callers. Tables are read-only; lookups of unknown ids never fail.
package catalog

import "strings"

// Voice is a prebuilt synthesizer voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Option is a pitch or style choice. Instruction is prepended to the text
// sent to the synthesizer and may be empty.
type Option struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Instruction string `json:"instruction"`
}

var voices = []Voice{
	{ID: "Kore", Name: "Kore (Female)"},
	{ID: "Puck", Name: "Puck (Male)"},
	{ID: "Charon", Name: "Charon (Male, Deep)"},
	{ID: "Fenrir", Name: "Fenrir (Male, Deep)"},
	{ID: "Zephyr", Name: "Zephyr (Female)"},
}

var pitches = []Option{
	{ID: "low", Name: "Low", Instruction: "Say in a very low-pitched voice: "},
	{ID: "normal", Name: "Normal", Instruction: ""},
	{ID: "high", Name: "High", Instruction: "Say in a very high-pitched voice: "},
}

var styles = []Option{
	{ID: "normal", Name: "Normal", Instruction: ""},
	{ID: "cheerful", Name: "Cheerful", Instruction: "Say cheerfully: "},
	{ID: "sad", Name: "Sad", Instruction: "Say sadly: "},
	{ID: "angry", Name: "Angry", Instruction: "Say angrily: "},
	{ID: "whisper", Name: "Whisper", Instruction: "Say in a whisper: "},
}

// Voices returns a copy of the voice table.
func Voices() []Voice { return append([]Voice(nil), voices...) }

// Pitches returns a copy of the pitch table.
func Pitches() []Option { return append([]Option(nil), pitches...) }

// Styles returns a copy of the style table.
func Styles() []Option { return append([]Option(nil), styles...) }

func LookupVoice(id string) (Voice, bool) {
	for _, v := range voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

func LookupPitch(id string) (Option, bool) { return lookup(pitches, id) }

func LookupStyle(id string) (Option, bool) { return lookup(styles, id) }

// PitchInstruction returns the instruction for id, or "" when id is unknown.
func PitchInstruction(id string) string {
	opt, _ := LookupPitch(id)
	return opt.Instruction
}

// StyleInstruction returns the instruction for id, or "" when id is unknown.
func StyleInstruction(id string) string {
	opt, _ := LookupStyle(id)
	return opt.Instruction
}

// ShortName is the first word of the voice's display name.
func (v Voice) ShortName() string {
	if fields := strings.Fields(v.Name); len(fields) > 0 {
		return fields[0]
	}
	return v.ID
}

func lookup(table []Option, id string) (Option, bool) {
	for _, opt := range table {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}
