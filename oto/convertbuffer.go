package oto

import (
	"encoding/binary"
	"math"

	"github.com/vvvst/vvvst"
)

// AppendFloat32LE appends the frames of buffer to dst as interleaved float32
// little-endian bytes, which is what the oto context is opened with. Reusing
// dst across calls avoids allocating on every write.
func AppendFloat32LE(dst []byte, buffer vvvst.AudioBuffer) []byte {
	for _, frame := range buffer {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(frame[0]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(frame[1]))
	}
	return dst
}
