package vector

import (
	"encoding/binary"
	"math"
)

// Encode packs v as little-endian float32 values.
func Encode(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}

	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}

	return buf
}

// Decode is the inverse of Encode. Trailing bytes that do not form a whole
// value are ignored.
func Decode(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}

	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}

	return v
}
