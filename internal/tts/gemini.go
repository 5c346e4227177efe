package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model with native speech output.
const DefaultGeminiModel = "gemini-2.5-flash-preview-tts"

type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string // optional base URL override
}

type geminiSynth struct {
	models *genai.Models
	model  string
}

// NewGeminiSynth returns a synthesizer backed by the Gemini API.
func NewGeminiSynth(ctx context.Context, cfg GeminiConfig) (Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiSynth{models: client.Models, model: model}, nil
}

func (g *geminiSynth) Synthesize(ctx context.Context, req SynthRequest) (Result, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), speechConfig(req.Voice))
	if err != nil {
		return Result{}, classify(err)
	}
	data, ok := inlineAudio(resp)
	if !ok {
		return Result{}, noAudio()
	}
	// The SDK has already decoded the payload; re-encode so every backend
	// hands the same base64 contract to the decode step.
	return Result{Audio: []string{base64.StdEncoding.EncodeToString(data)}}, nil
}

func speechConfig(voice string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
}

// inlineAudio returns the first part's inline data of the first candidate.
func inlineAudio(resp *genai.GenerateContentResponse) ([]byte, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, false
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		return nil, false
	}
	part := cand.Content.Parts[0]
	if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
		return nil, false
	}
	return part.InlineData.Data, true
}
