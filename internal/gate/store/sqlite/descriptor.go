package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeDescriptor packs a descriptor as little-endian float32s. A nil or
// empty descriptor maps to SQL NULL.
func encodeDescriptor(v []float32) (any, any) {
	if len(v) == 0 {
		return nil, nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf, len(v)
}

func decodeDescriptor(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("descriptor blob has %d bytes, not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}
