//go:build linux || darwin

package chime

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer plays the shutter sound on the default audio output.
type OtoPlayer struct {
	otoCtx  *oto.Context
	pcm     []byte
	playing atomic.Bool
}

// New opens the audio output. Only one oto context may exist per process.
func New(volume float64) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &OtoPlayer{otoCtx: otoCtx, pcm: shutter(volume)}, nil
}

// Play starts the sound in the background. A call while the previous
// sound is still playing is dropped.
func (p *OtoPlayer) Play() {
	if !p.playing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.playing.Store(false)

		player := p.otoCtx.NewPlayer(bytes.NewReader(p.pcm))
		defer player.Close()
		player.Play()

		for player.IsPlaying() {
			time.Sleep(20 * time.Millisecond)
		}
		if err := player.Err(); err != nil {
			slog.Warn("Shutter sound failed", "error", err)
		}
	}()
}

func (p *OtoPlayer) Close() error {
	return p.otoCtx.Suspend()
}
