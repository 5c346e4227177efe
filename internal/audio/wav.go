// Package audio wraps raw PCM returned by synthesizers into WAV containers
// and decodes the base64 payloads that carry it.
package audio

import (
	"encoding/binary"
	"time"
)

// HeaderSize is the length of the canonical RIFF/WAVE header written by EncodeWAV.
const HeaderSize = 44

const formatPCM = 1

// Format describes interleaved little-endian PCM.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is 44.1 kHz mono 16-bit.
func DefaultFormat() Format {
	return Format{SampleRate: 44100, Channels: 1, BitsPerSample: 16}
}

func (f Format) BlockAlign() int { return f.Channels * f.BitsPerSample / 8 }

func (f Format) ByteRate() int { return f.SampleRate * f.BlockAlign() }

// EncodeWAV prefixes pcm with a 44-byte PCM WAV header. The payload is copied
// verbatim; a length that is not a multiple of the block alignment is not
// corrected.
func EncodeWAV(pcm []byte, f Format) []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], formatPCM)
	le.PutUint16(out[22:24], uint16(f.Channels))
	le.PutUint32(out[24:28], uint32(f.SampleRate))
	le.PutUint32(out[28:32], uint32(f.ByteRate()))
	le.PutUint16(out[32:34], uint16(f.BlockAlign()))
	le.PutUint16(out[34:36], uint16(f.BitsPerSample))

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(len(pcm)))

	return append(out, pcm...)
}

// Duration is the playback length of pcmLen bytes in format f.
func Duration(pcmLen int, f Format) time.Duration {
	rate := f.ByteRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(pcmLen) * int64(time.Second) / int64(rate))
}
