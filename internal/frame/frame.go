package frame

import "fmt"

// Format identifies the memory layout of a buffer's payload.
type Format uint8

const (
	// FormatRGBA8 is 8-bit-per-channel RGBA video, 4 bytes per pixel.
	FormatRGBA8 Format = iota
	// FormatBGR24 is 8-bit-per-channel BGR video, 3 bytes per pixel.
	FormatBGR24
	// FormatGray8 is single-channel 8-bit video, 1 byte per pixel.
	FormatGray8
	// FormatScalar is a single float64 control sample, little-endian.
	FormatScalar
	// FormatEvent is a tick-scoped trigger list, see event.go.
	FormatEvent
)

// PixelStride returns the bytes per pixel for video formats and 0 for
// signal formats.
func (f Format) PixelStride() int {
	switch f {
	case FormatRGBA8:
		return 4
	case FormatBGR24:
		return 3
	case FormatGray8:
		return 1
	default:
		return 0
	}
}

// Video reports whether the format carries pixel data.
func (f Format) Video() bool {
	return f.PixelStride() > 0
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatBGR24:
		return "bgr24"
	case FormatGray8:
		return "gray8"
	case FormatScalar:
		return "scalar"
	case FormatEvent:
		return "event"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat maps the names used in patch files back to formats.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "rgba8":
		return FormatRGBA8, nil
	case "bgr24":
		return FormatBGR24, nil
	case "gray8":
		return FormatGray8, nil
	case "scalar":
		return FormatScalar, nil
	case "event":
		return FormatEvent, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

// ScalarSize is the payload size of a FormatScalar buffer.
const ScalarSize = 8

// EventCapacity is the payload size of a FormatEvent buffer. It bounds the
// number of triggers a single tick can carry, see MaxEvents.
const EventCapacity = 4 + 8*64

// Class describes a buffer shape. The pool keys its free lists by Class, so
// two buffers of the same class are interchangeable storage.
type Class struct {
	Format Format
	Width  int
	Height int
}

// VideoClass returns the class for a pixel buffer of the given geometry.
func VideoClass(f Format, width, height int) Class {
	return Class{Format: f, Width: width, Height: height}
}

// ScalarClass returns the class shared by all scalar control buffers.
func ScalarClass() Class {
	return Class{Format: FormatScalar, Width: 1, Height: 1}
}

// EventClass returns the class shared by all event buffers.
func EventClass() Class {
	return Class{Format: FormatEvent, Width: 1, Height: 1}
}

// Size returns the payload size in bytes for buffers of this class.
func (c Class) Size() int {
	switch c.Format {
	case FormatScalar:
		return ScalarSize
	case FormatEvent:
		return EventCapacity
	default:
		return c.Format.PixelStride() * c.Width * c.Height
	}
}

// Valid reports whether the class describes an allocatable buffer.
func (c Class) Valid() bool {
	if c.Format.Video() {
		return c.Width > 0 && c.Height > 0
	}
	return c.Format == FormatScalar || c.Format == FormatEvent
}

func (c Class) String() string {
	if c.Format.Video() {
		return fmt.Sprintf("%s_%dx%d", c.Format, c.Width, c.Height)
	}
	return c.Format.String()
}

// Buffer is a single pooled allocation. Instances are created by the pool
// and recycled through it; the backing slice is never resized or rebound
// for the lifetime of the buffer.
type Buffer struct {
	class Class
	data  []byte
}

// NewBuffer allocates a buffer for the class. Only the pool should call
// this; it exists as a constructor so tests can build fixtures directly.
func NewBuffer(c Class) *Buffer {
	return &Buffer{class: c, data: make([]byte, c.Size())}
}

// Class returns the shape this buffer was allocated for.
func (b *Buffer) Class() Class { return b.class }

// Bytes exposes the payload. Mutating it is only legal while the holder
// has exclusive write access, which the pool's Lease type arbitrates.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the payload size in bytes.
func (b *Buffer) Len() int { return len(b.data) }
