package frame

import (
	"encoding/binary"
	"errors"
)

// MaxEvents is the number of triggers one event buffer can carry.
const MaxEvents = (EventCapacity - 4) / 8

// ErrEventOverflow is returned when a tick produces more triggers than an
// event buffer can hold.
var ErrEventOverflow = errors.New("frame: event buffer full")

// Event layout: a little-endian uint32 count followed by count uint64
// payloads. ResetEvents must run before the first append of a tick because
// pooled buffers keep their previous contents.

// ResetEvents clears the trigger count in dst.
func ResetEvents(dst []byte) {
	binary.LittleEndian.PutUint32(dst[:4], 0)
}

// AppendEvent adds one trigger payload to dst.
func AppendEvent(dst []byte, payload uint64) error {
	n := binary.LittleEndian.Uint32(dst[:4])
	if int(n) >= MaxEvents {
		return ErrEventOverflow
	}
	off := 4 + int(n)*8
	binary.LittleEndian.PutUint64(dst[off:off+8], payload)
	binary.LittleEndian.PutUint32(dst[:4], n+1)
	return nil
}

// Events decodes the trigger payloads from src. The returned slice is
// freshly allocated; it does not alias the buffer.
func Events(src []byte) []uint64 {
	n := int(binary.LittleEndian.Uint32(src[:4]))
	if n > MaxEvents {
		n = MaxEvents
	}
	out := make([]uint64, n)
	for i := range out {
		off := 4 + i*8
		out[i] = binary.LittleEndian.Uint64(src[off : off+8])
	}
	return out
}
