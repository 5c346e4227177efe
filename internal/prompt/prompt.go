// Package prompt turns user text and presentation options into the single
// instruction string handed to the synthesizer.
package prompt

import "github.com/loqalabs/loqa-tts/internal/catalog"

// Input is the caller-owned state for one generation.
type Input struct {
	Text    string
	Rules   []Rule
	StyleID string
	PitchID string
}

// Compose joins the instructions and text, style first.
func Compose(styleInstruction, pitchInstruction, text string) string {
	return styleInstruction + pitchInstruction + text
}

// Build applies pronunciation rules and prefixes the style and pitch
// instructions. Unknown style or pitch ids contribute nothing.
func Build(in Input) string {
	text := Apply(in.Text, in.Rules)
	return Compose(catalog.StyleInstruction(in.StyleID), catalog.PitchInstruction(in.PitchID), text)
}
