package chime

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestToneLength(t *testing.T) {
	pcm := tone(1000, 100*time.Millisecond, 44100, 2, 0.5)
	if want := 4410 * 2 * 2; len(pcm) != want {
		t.Errorf("Expected %d bytes, got %d", want, len(pcm))
	}
}

func TestToneFadesAndChannels(t *testing.T) {
	pcm := tone(1000, 50*time.Millisecond, 44100, 2, 1)

	first := int16(binary.LittleEndian.Uint16(pcm[0:]))
	if first != 0 {
		t.Errorf("Expected silent first sample, got %d", first)
	}

	var peak int16
	for i := 0; i+3 < len(pcm); i += 4 {
		l := int16(binary.LittleEndian.Uint16(pcm[i:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i+2:]))
		if l != r {
			t.Fatalf("channels differ at frame %d: %d vs %d", i/4, l, r)
		}
		if l > peak {
			peak = l
		}
	}
	if peak < 30000 {
		t.Errorf("Expected near full scale peak, got %d", peak)
	}
}

func TestShutter(t *testing.T) {
	if len(shutter(0.3)) == 0 {
		t.Error("empty shutter sound")
	}
	var p Player = Noop{}
	p.Play()
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}
