package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/wav"
)

// Info summarises a WAV stream.
type Info struct {
	Format      Format
	AudioFormat int
	DataSize    int
	Duration    time.Duration
}

// Inspect parses the header and locates the data chunk of a WAV stream.
func Inspect(r io.ReadSeeker) (Info, error) {
	dec := wav.NewDecoder(r)
	if err := dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("read wav: %w", err)
	}
	if dec.SampleRate == 0 {
		return Info{}, errors.New("wav header has zero sample rate")
	}
	f := Format{
		SampleRate:    int(dec.SampleRate),
		Channels:      int(dec.NumChans),
		BitsPerSample: int(dec.BitDepth),
	}
	return Info{
		Format:      f,
		AudioFormat: int(dec.WavAudioFormat),
		DataSize:    dec.PCMSize,
		Duration:    Duration(dec.PCMSize, f),
	}, nil
}
