package camera

import (
	"strings"
	"time"
)

// PixelFormat tags the encoding of Frame.Data.
type PixelFormat string

const (
	FormatJPEG PixelFormat = "jpeg"
)

// Frame is one encoded image handed out by a Producer.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    PixelFormat
	Timestamp time.Time
	Seq       uint64
}

// Len returns the encoded size in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}

// FrameSize names a sensor resolution profile.
type FrameSize string

const (
	FrameSizeQQVGA FrameSize = "qqvga"
	FrameSizeQVGA  FrameSize = "qvga"
	FrameSizeCIF   FrameSize = "cif"
	FrameSizeVGA   FrameSize = "vga"
	FrameSizeSVGA  FrameSize = "svga"
	FrameSizeXGA   FrameSize = "xga"
	FrameSizeHD    FrameSize = "hd"
	FrameSizeSXGA  FrameSize = "sxga"
	FrameSizeUXGA  FrameSize = "uxga"
)

// RecoveryProfile is forced onto the sensor after every successful
// initialization. Smaller frames keep the single frame buffer satisfiable.
const RecoveryProfile = FrameSizeVGA

var frameSizes = map[FrameSize][2]int{
	FrameSizeQQVGA: {160, 120},
	FrameSizeQVGA:  {320, 240},
	FrameSizeCIF:   {400, 296},
	FrameSizeVGA:   {640, 480},
	FrameSizeSVGA:  {800, 600},
	FrameSizeXGA:   {1024, 768},
	FrameSizeHD:    {1280, 720},
	FrameSizeSXGA:  {1280, 1024},
	FrameSizeUXGA:  {1600, 1200},
}

// Dimensions returns width and height for a known profile.
func (s FrameSize) Dimensions() (int, int, bool) {
	d, ok := frameSizes[FrameSize(strings.ToLower(string(s)))]
	return d[0], d[1], ok
}

// Valid reports whether s names a known profile.
func (s FrameSize) Valid() bool {
	_, _, ok := s.Dimensions()
	return ok
}
