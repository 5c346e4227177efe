package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// execWaitDelay bounds how long Wait lingers on output pipes held open by
// grandchildren after the command itself has exited or been killed.
const execWaitDelay = 2 * time.Second

type execSynth struct {
	cmd        []string
	sampleRate int
	channels   int
	mu         sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
	Error     string `json:"error,omitempty"`
}

// NewExecSynth runs command once per request. The command receives an
// execRequest as JSON on stdin and writes JSON lines with base64 PCM.
func NewExecSynth(command string, sampleRate, channels int) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &execSynth{cmd: args, sampleRate: sampleRate, channels: channels}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req SynthRequest) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := json.Marshal(execRequest{
		Text:       req.Prompt,
		Voice:      req.Voice,
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	})
	if err != nil {
		return Result{}, classify(err)
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.WaitDelay = execWaitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, classify(err)
	}
	if err := cmd.Start(); err != nil {
		return Result{}, classify(fmt.Errorf("start tts command: %w", err))
	}
	// Killing the command does not close stdout while a grandchild still
	// holds it, so unblock the reader directly.
	stopClose := context.AfterFunc(ctx, func() { _ = stdout.Close() })
	defer stopClose()

	var result Result
	final := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		// Output after the final segment is drained but ignored.
		if len(line) == 0 || final {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			abort(cmd)
			return Result{}, classify(fmt.Errorf("decode tts command output: %w", err))
		}
		if resp.Error != "" {
			abort(cmd)
			return Result{}, classify(errors.New(resp.Error))
		}
		result.Audio = append(result.Audio, resp.PCMBase64)
		final = resp.Final
	}
	if err := ctx.Err(); err != nil {
		abort(cmd)
		return Result{}, classify(fmt.Errorf("tts command: %w", err))
	}
	if err := scanner.Err(); err != nil {
		abort(cmd)
		return Result{}, classify(fmt.Errorf("read tts command output: %w", err))
	}
	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, classify(fmt.Errorf("tts command: %w", ctxErr))
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return Result{}, classify(fmt.Errorf("tts command failed: %w", err))
	}
	if result.Empty() {
		return Result{}, noAudio()
	}
	return result, nil
}

func abort(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	_ = cmd.Wait()
}
