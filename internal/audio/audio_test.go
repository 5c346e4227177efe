package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"
)

type header struct {
	riff          string
	chunkSize     uint32
	wave          string
	fmtID         string
	subchunk1Size uint32
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	byteRate      uint32
	blockAlign    uint16
	bitsPerSample uint16
	dataID        string
	dataLength    uint32
}

func parseHeader(t *testing.T, b []byte) header {
	t.Helper()
	if len(b) < HeaderSize {
		t.Fatalf("buffer shorter than header: %d", len(b))
	}
	le := binary.LittleEndian
	return header{
		riff:          string(b[0:4]),
		chunkSize:     le.Uint32(b[4:8]),
		wave:          string(b[8:12]),
		fmtID:         string(b[12:16]),
		subchunk1Size: le.Uint32(b[16:20]),
		audioFormat:   le.Uint16(b[20:22]),
		channels:      le.Uint16(b[22:24]),
		sampleRate:    le.Uint32(b[24:28]),
		byteRate:      le.Uint32(b[28:32]),
		blockAlign:    le.Uint16(b[32:34]),
		bitsPerSample: le.Uint16(b[34:36]),
		dataID:        string(b[36:40]),
		dataLength:    le.Uint32(b[40:44]),
	}
}

func TestEncodeEmptyPCM(t *testing.T) {
	out := EncodeWAV(nil, DefaultFormat())
	if len(out) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(out))
	}
	h := parseHeader(t, out)
	if h.chunkSize != 36 {
		t.Fatalf("expected chunk size 36, got %d", h.chunkSize)
	}
	if h.dataLength != 0 {
		t.Fatalf("expected data length 0, got %d", h.dataLength)
	}
}

func TestEncodeHeaderLayout(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	out := EncodeWAV(pcm, DefaultFormat())
	h := parseHeader(t, out)

	want := header{
		riff:          "RIFF",
		chunkSize:     36 + 6,
		wave:          "WAVE",
		fmtID:         "fmt ",
		subchunk1Size: 16,
		audioFormat:   1,
		channels:      1,
		sampleRate:    44100,
		byteRate:      88200,
		blockAlign:    2,
		bitsPerSample: 16,
		dataID:        "data",
		dataLength:    6,
	}
	if h != want {
		t.Fatalf("header mismatch:\n got %+v\nwant %+v", h, want)
	}
	if !bytes.Equal(out[HeaderSize:], pcm) {
		t.Fatalf("payload not copied verbatim")
	}
}

func TestEncodeStereoFormat(t *testing.T) {
	f := Format{SampleRate: 24000, Channels: 2, BitsPerSample: 16}
	h := parseHeader(t, EncodeWAV(make([]byte, 8), f))
	if h.byteRate != 96000 || h.blockAlign != 4 || h.channels != 2 || h.sampleRate != 24000 {
		t.Fatalf("unexpected stereo header %+v", h)
	}
}

func TestEncodeOddLengthPassesThrough(t *testing.T) {
	pcm := []byte{9, 8, 7}
	out := EncodeWAV(pcm, DefaultFormat())
	if len(out) != HeaderSize+3 {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+3, len(out))
	}
	if parseHeader(t, out).dataLength != 3 {
		t.Fatal("expected data length 3")
	}
	if out[len(out)-1] != 7 {
		t.Fatal("trailing byte dropped")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	pcm := []byte{0, 1, 0, 2}
	a := EncodeWAV(pcm, DefaultFormat())
	b := EncodeWAV(pcm, DefaultFormat())
	if !bytes.Equal(a, b) {
		t.Fatal("expected identical output for identical input")
	}
	if !bytes.Equal(pcm, []byte{0, 1, 0, 2}) {
		t.Fatal("input mutated")
	}
}

func TestInspectRoundTrip(t *testing.T) {
	formats := []Format{
		DefaultFormat(),
		{SampleRate: 24000, Channels: 1, BitsPerSample: 16},
		{SampleRate: 48000, Channels: 2, BitsPerSample: 16},
	}
	for _, f := range formats {
		pcm := make([]byte, f.ByteRate()/10) // 100ms
		info, err := Inspect(bytes.NewReader(EncodeWAV(pcm, f)))
		if err != nil {
			t.Fatalf("inspect %+v: %v", f, err)
		}
		if info.Format != f {
			t.Fatalf("format mismatch: got %+v want %+v", info.Format, f)
		}
		if info.AudioFormat != 1 {
			t.Fatalf("expected PCM audio format, got %d", info.AudioFormat)
		}
		if info.DataSize != len(pcm) {
			t.Fatalf("expected data size %d, got %d", len(pcm), info.DataSize)
		}
		if info.Duration != 100*time.Millisecond {
			t.Fatalf("expected 100ms, got %v", info.Duration)
		}
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	if _, err := Inspect(bytes.NewReader([]byte("not a wav file at all, definitely not"))); err == nil {
		t.Fatal("expected error for non-wav input")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(88200, DefaultFormat()); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	if got := Duration(100, Format{}); got != 0 {
		t.Fatalf("expected 0 for empty format, got %v", got)
	}
}

func TestDecodeBase64(t *testing.T) {
	pcm := []byte{0x00, 0x7f, 0x80, 0xff}
	got, err := DecodeBase64(base64.StdEncoding.EncodeToString(pcm))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Fatalf("unexpected bytes %v", got)
	}

	empty, err := DecodeBase64("")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty payload to decode, got %v %v", empty, err)
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	got, err := DecodeBase64("not*base64!")
	if err == nil {
		t.Fatal("expected error")
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
	if decErr.Segment != -1 || strings.Contains(err.Error(), "segment") {
		t.Fatalf("single payload should not report a segment, got %d %q", decErr.Segment, err)
	}
	if got != nil {
		t.Fatal("expected no output on failure")
	}
}

func TestDecodeSegments(t *testing.T) {
	a := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	b := base64.StdEncoding.EncodeToString([]byte{4})
	got, err := DecodeSegments([]string{a, b})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected bytes %v", got)
	}

	_, err = DecodeSegments([]string{a, "%%%"})
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Segment != 1 {
		t.Fatalf("expected DecodeError for segment 1, got %v", err)
	}
}

func TestDecodeSegmentsFirstSegmentInvalid(t *testing.T) {
	b := base64.StdEncoding.EncodeToString([]byte{4})
	got, err := DecodeSegments([]string{"%%%", b})
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Segment != 0 {
		t.Fatalf("expected DecodeError for segment 0, got %v", err)
	}
	if !strings.Contains(err.Error(), "segment 0") {
		t.Fatalf("expected message to name segment 0, got %q", err)
	}
	if got != nil {
		t.Fatal("expected no output on failure")
	}
}
