package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"
)

// SimProducer generates test-pattern JPEG frames. It models the sensor's
// finite frame buffer pool (Config.FBCount) and can inject failures, so the
// recovery path can be exercised without hardware.
type SimProducer struct {
	mu          sync.Mutex
	cfg         Config
	size        FrameSize
	initialized bool
	outstanding int
	seq         uint64

	initErr   error
	failGrabs int

	initCalls   int
	deinitCalls int
}

func NewSimProducer() *SimProducer {
	return &SimProducer{}
}

// FailInit makes every following Init return err. Pass nil to clear.
func (p *SimProducer) FailInit(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initErr = err
}

// FailGrabs makes the next n grabs come back empty.
func (p *SimProducer) FailGrabs(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failGrabs = n
}

// Outstanding returns the number of frames not yet returned.
func (p *SimProducer) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// InitCalls returns how many times Init was called.
func (p *SimProducer) InitCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initCalls
}

// DeinitCalls returns how many times Deinit was called.
func (p *SimProducer) DeinitCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deinitCalls
}

// FrameSize returns the active resolution profile.
func (p *SimProducer) FrameSize() FrameSize {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *SimProducer) Init(cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.initCalls++
	if p.initErr != nil {
		return p.initErr
	}
	if p.initialized {
		return &InitError{Reason: ReasonInvalidState, Err: fmt.Errorf("already initialized")}
	}
	if !cfg.FrameSize.Valid() {
		return &InitError{Reason: ReasonNotSupported, Err: fmt.Errorf("frame size %q", cfg.FrameSize)}
	}
	if cfg.FBCount < 1 {
		cfg.FBCount = 1
	}
	p.cfg = cfg
	p.size = cfg.FrameSize
	p.initialized = true
	p.outstanding = 0
	return nil
}

func (p *SimProducer) Deinit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deinitCalls++
	p.initialized = false
	p.outstanding = 0
	return nil
}

func (p *SimProducer) SetFrameSize(size FrameSize) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return fmt.Errorf("sensor not initialized")
	}
	if !size.Valid() {
		return fmt.Errorf("unknown frame size %q", size)
	}
	p.size = size
	return nil
}

func (p *SimProducer) Grab() (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, ErrEmpty
	}
	if p.outstanding >= p.cfg.FBCount {
		return nil, ErrEmpty
	}
	if p.failGrabs > 0 {
		p.failGrabs--
		return nil, ErrEmpty
	}

	w, h, _ := p.size.Dimensions()
	p.seq++
	data, err := testPattern(w, h, p.seq, goJPEGQuality(p.cfg.JPEGQuality))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmpty, err)
	}
	p.outstanding++
	return &Frame{
		Data:      data,
		Width:     w,
		Height:    h,
		Format:    FormatJPEG,
		Timestamp: time.Now(),
		Seq:       p.seq,
	}, nil
}

func (p *SimProducer) Return(f *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outstanding > 0 {
		p.outstanding--
	}
}

// testPattern draws a gradient whose red channel shifts with seq.
func testPattern(width, height int, seq uint64, quality int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	color := byte(seq % 256)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := y*img.Stride + x*4
			img.Pix[offset] = color
			img.Pix[offset+1] = byte((x * 255) / width)
			img.Pix[offset+2] = byte((y * 255) / height)
			img.Pix[offset+3] = 255
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
