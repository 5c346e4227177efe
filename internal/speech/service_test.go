package speech

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/loqalabs/loqa-tts/internal/audio"
	"github.com/loqalabs/loqa-tts/internal/bus"
	"github.com/loqalabs/loqa-tts/internal/config"
	"github.com/loqalabs/loqa-tts/internal/natsserver"
	"github.com/loqalabs/loqa-tts/internal/protocol"
)

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	srv, err := natsserver.Start(natsserver.Options{Host: "127.0.0.1", Port: -1}, testLogger())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	client, err := bus.Connect(context.Background(), config.BusConfig{Servers: []string{srv.ClientURL()}, ConnectTimeout: 2000}, "speech-test", testLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestServicePublishesAudioAndStatus(t *testing.T) {
	client := startBus(t)
	synth := &fakeSynth{audio: []string{"AAECAw=="}}
	svc := NewService(context.Background(), client, NewGenerator(synth, testOptions(), testLogger()), 0, testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer svc.Close()

	audioSub, err := client.Conn().SubscribeSync(protocol.SubjectTTSAudio)
	if err != nil {
		t.Fatal(err)
	}
	doneSub, err := client.Conn().SubscribeSync(protocol.SubjectTTSDone)
	if err != nil {
		t.Fatal(err)
	}

	req := protocol.TTSRequest{
		SessionID: "s1",
		Text:      "read the GIF",
		Target:    "kitchen",
		Rules:     []protocol.PronunciationRule{{Word: "GIF", Replacement: "JIF"}},
	}
	if err := client.PublishJSON(protocol.SubjectTTSRequest, req); err != nil {
		t.Fatal(err)
	}

	msg, err := audioSub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("waiting for audio: %v", err)
	}
	var packet protocol.TTSAudio
	if err := json.Unmarshal(msg.Data, &packet); err != nil {
		t.Fatal(err)
	}
	if packet.SessionID != "s1" || packet.Target != "kitchen" || packet.Voice != "Kore" {
		t.Fatalf("unexpected packet %+v", packet)
	}
	if len(packet.WAV) != audio.HeaderSize+4 || packet.SampleRate != 24000 {
		t.Fatalf("unexpected audio: %d bytes at %d Hz", len(packet.WAV), packet.SampleRate)
	}

	msg, err = doneSub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("waiting for status: %v", err)
	}
	var status protocol.TTSStatus
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatal(err)
	}
	if !status.Completed || status.Error != "" {
		t.Fatalf("unexpected status %+v", status)
	}
	if got := synth.Calls()[0].Prompt; got != "read the JIF" {
		t.Fatalf("rules not carried over the wire, prompt %q", got)
	}
}

func TestServiceRepliesWithError(t *testing.T) {
	client := startBus(t)
	synth := &fakeSynth{audio: []string{"AAAA"}}
	svc := NewService(context.Background(), client, NewGenerator(synth, testOptions(), testLogger()), 0, testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer svc.Close()
	if !svc.Healthy() {
		t.Fatal("expected healthy service")
	}

	data, _ := json.Marshal(protocol.TTSRequest{SessionID: "s2", Text: "  "})
	msg, err := client.Conn().Request(protocol.SubjectTTSRequest, data, 2*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var status protocol.TTSStatus
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatal(err)
	}
	if status.Completed || status.Error != CodeValidation || status.SessionID != "s2" {
		t.Fatalf("unexpected status %+v", status)
	}
	if n := len(synth.Calls()); n != 0 {
		t.Fatalf("expected no synthesis calls, got %d", n)
	}
}
