package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/loqalabs/loqa-tts/internal/audio"
	"github.com/loqalabs/loqa-tts/internal/config"
	"github.com/loqalabs/loqa-tts/internal/prompt"
	"github.com/loqalabs/loqa-tts/internal/speech"
	"github.com/loqalabs/loqa-tts/internal/tts"
)

var version = "0.1.0-dev"

const usage = "expected 'synth', 'rules validate', 'inspect' or 'version'"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "synth":
		err = runSynth(os.Args[2:])
	case "rules":
		if len(os.Args) < 3 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "expected 'rules validate'")
			os.Exit(2)
		}
		err = runRulesValidate(os.Args[3:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSynth(args []string) error {
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "Path to configuration file (optional)")
		text       = fs.String("text", "", "Text to speak")
		voice      = fs.String("voice", "", "Voice id (defaults to tts.default_voice)")
		pitch      = fs.String("pitch", "", "Pitch id")
		style      = fs.String("style", "", "Style id")
		rulesPath  = fs.String("rules", "", "Pronunciation rules file")
		outPath    = fs.String("out", "speech.wav", "Output WAV file")
		verbose    = fs.Bool("v", false, "Log pipeline details to stderr")
	)
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	extra, err := prompt.LoadAndValidate(*rulesPath)
	if err != nil {
		return err
	}
	opts, err := generatorOptions(cfg)
	if err != nil {
		return err
	}

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TTS.TimeoutMS)*time.Millisecond)
	defer cancel()

	synth, err := tts.New(ctx, cfg.TTS, cfg.Audio)
	if err != nil {
		return err
	}
	gen := speech.NewGenerator(synth, opts, logger)

	out, err := gen.Generate(ctx, speech.Request{Text: *text, Voice: *voice, Pitch: *pitch, Style: *style, Rules: extra})
	if err != nil {
		_, message := speech.Describe(err)
		return fmt.Errorf("%s (%w)", message, err)
	}
	if err := os.WriteFile(*outPath, out.WAV, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *outPath, err)
	}
	fmt.Printf("wrote %s (%d bytes, %s, voice %s)\n", *outPath, len(out.WAV), out.Duration.Round(time.Millisecond), out.Voice)
	return nil
}

// generatorOptions mirrors the daemon: the configured global rules run before
// any rules passed on the command line.
func generatorOptions(cfg config.Config) (speech.Options, error) {
	rules, err := prompt.LoadAndValidate(cfg.Pronunciation.RulesPath)
	if err != nil {
		return speech.Options{}, err
	}
	return speech.Options{
		DefaultVoice: cfg.TTS.DefaultVoice,
		DefaultPitch: cfg.TTS.DefaultPitch,
		DefaultStyle: cfg.TTS.DefaultStyle,
		Format: audio.Format{
			SampleRate:    cfg.Audio.SampleRate,
			Channels:      cfg.Audio.Channels,
			BitsPerSample: cfg.Audio.BitsPerSample,
		},
		Rules: rules,
	}, nil
}

func runRulesValidate(args []string) error {
	fs := flag.NewFlagSet("rules validate", flag.ExitOnError)
	path := fs.String("file", "rules.yaml", "Path to pronunciation rules file")
	_ = fs.Parse(args)

	rules, err := prompt.LoadRules(*path)
	if err != nil {
		return err
	}
	if err := prompt.ValidateRules(rules); err != nil {
		return err
	}
	fmt.Printf("%d rules valid\n", len(rules))
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	path := fs.String("file", "speech.wav", "WAV file to inspect")
	_ = fs.Parse(args)

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := audio.Inspect(f)
	if err != nil {
		return err
	}
	fmt.Printf("format:      %d (PCM=1)\n", info.AudioFormat)
	fmt.Printf("sample rate: %d Hz\n", info.Format.SampleRate)
	fmt.Printf("channels:    %d\n", info.Format.Channels)
	fmt.Printf("bits:        %d\n", info.Format.BitsPerSample)
	fmt.Printf("data bytes:  %d\n", info.DataSize)
	fmt.Printf("duration:    %s\n", info.Duration.Round(time.Millisecond))
	return nil
}
