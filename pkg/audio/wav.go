package audio

import (
	"fmt"
	"io"

	"github.com/youpy/go-wav"
)

// WriteWAV encodes a snapshot as a PCM RIFF/WAVE stream. An empty snapshot
// still produces a valid header with a zero-length data chunk.
func WriteWAV(w io.Writer, s Snapshot) error {
	bits, channels, rate := s.BitDepth, s.Channels, s.SampleRate
	if bits == 0 {
		bits = DefaultBitDepth
	}
	if channels == 0 {
		channels = DefaultChannels
	}
	if rate == 0 {
		rate = DefaultSampleRate
	}

	blockAlign := channels * bits / 8
	numSamples := uint32(s.Length / blockAlign)

	writer := wav.NewWriter(w, numSamples, uint16(channels), uint32(rate), uint16(bits))
	if numSamples == 0 {
		return nil
	}
	if _, err := writer.Write(s.Data[:int(numSamples)*blockAlign]); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}
