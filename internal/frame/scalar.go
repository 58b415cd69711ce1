package frame

import (
	"encoding/binary"
	"math"
)

// PutScalar encodes a control sample into dst, which must be at least
// ScalarSize bytes. Samples are little-endian float64, matching the wire
// layout consumers outside the engine expect.
func PutScalar(dst []byte, v float64) {
	binary.LittleEndian.PutUint64(dst[:ScalarSize], math.Float64bits(v))
}

// Scalar decodes the control sample from src.
func Scalar(src []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(src[:ScalarSize]))
}
