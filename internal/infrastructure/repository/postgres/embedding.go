package postgres

import (
	"encoding/binary"
	"math"
)

// Embeddings are persisted as little-endian float32 bytes, matching the
// layout the index artifacts use on disk.

func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeEmbedding(raw []byte) []float32 {
	if len(raw) < 4 {
		return nil
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
