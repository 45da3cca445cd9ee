package db

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector packs v as little-endian FLOAT32, the blob layout FT vector fields expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector reverses EncodeVector.
func DecodeVector(s string) ([]float32, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(s))
	}
	out := make([]float32, len(s)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return out, nil
}
