package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-tts/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func waitReady(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/readyz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("runtime never became ready")
}

func TestRuntimeServesSpeech(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(rulesPath, []byte("rules:\n  - word: GIF\n    replacement: JIF\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.Telemetry.PrometheusBind = ""
	cfg.TTS.Mode = "mock"
	cfg.Bus.Enabled = true
	cfg.Bus.Embedded = true
	cfg.Bus.Port = freePort(t)
	cfg.Pronunciation.RulesPath = rulesPath

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTP.Port)
	waitReady(t, base)

	resp, err := http.Post(base+"/v1/speech", "application/json", strings.NewReader(`{"text":"a GIF"}`))
	if err != nil {
		t.Fatalf("post speech: %v", err)
	}
	var body struct {
		Prompt string `json:"prompt"`
		Bytes  int    `json:"bytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body.Prompt != "a JIF" {
		t.Fatalf("global rules not applied, prompt %q", body.Prompt)
	}
	// 200ms of 44.1kHz mono 16-bit silence plus the header.
	if body.Bytes != 44+17640 {
		t.Fatalf("unexpected clip size %d", body.Bytes)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runtime returned error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestRuntimeRejectsBadRules(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(rulesPath, []byte("rules:\n  - word: \"\"\n    replacement: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.TTS.Mode = "mock"
	cfg.Telemetry.PrometheusBind = ""
	cfg.Pronunciation.RulesPath = rulesPath

	rt := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := rt.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid rules file")
	}
}

func mockConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.Telemetry.PrometheusBind = ""
	cfg.TTS.Mode = "mock"
	cfg.Bus.Enabled = false
	return cfg
}

func TestRuntimeStopsWhenCancelledBeforeServing(t *testing.T) {
	cfg := mockConfig(t)
	rt := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runtime returned error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("runtime did not stop after early cancellation")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.HTTP.Port))
	if err != nil {
		t.Fatalf("http port still held after stop: %v", err)
	}
	ln.Close()
}

func TestRuntimeFailsWhenPortTaken(t *testing.T) {
	cfg := mockConfig(t)
	taken, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.HTTP.Port))
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()

	rt := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan error, 1)
	go func() { done <- rt.Start(context.Background()) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "bind http api") {
			t.Fatalf("expected bind error, got %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("runtime did not report the bind failure")
	}
}
