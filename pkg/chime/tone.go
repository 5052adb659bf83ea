// Package chime plays a short shutter sound when a photo is persisted.
package chime

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	sampleRate   = 44100
	channelCount = 2
)

// Player plays the shutter sound without blocking the caller.
type Player interface {
	Play()
	Close() error
}

// Noop is used when no audio output is available.
type Noop struct{}

func (Noop) Play()        {}
func (Noop) Close() error { return nil }

// tone renders a sine burst as 16-bit little endian PCM with channels
// interleaved. A short linear fade avoids clicks at both ends.
func tone(freq float64, d time.Duration, rate, channels int, volume float64) []byte {
	frames := int(d.Seconds() * float64(rate))
	fade := rate / 200 // 5ms
	out := make([]byte, frames*channels*2)

	for i := 0; i < frames; i++ {
		env := 1.0
		if i < fade {
			env = float64(i) / float64(fade)
		} else if frames-i < fade {
			env = float64(frames-i) / float64(fade)
		}
		v := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * env * volume * math.MaxInt16)
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(out[(i*channels+c)*2:], uint16(v))
		}
	}
	return out
}

// shutter is a two-tone click, high then low.
func shutter(volume float64) []byte {
	pcm := tone(1800, 40*time.Millisecond, sampleRate, channelCount, volume)
	pcm = append(pcm, make([]byte, sampleRate/50*channelCount*2)...) // 20ms gap
	return append(pcm, tone(1200, 60*time.Millisecond, sampleRate, channelCount, volume)...)
}
