package kv

import (
	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"
)

// Encode serializes v with kelindar/binary and compresses it with zstd.
func Encode[T any](v T) ([]byte, error) {
	bb, err := binary.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Compress(bb)
}

func Decode[T any](bbCompressed []byte) (T, error) {
	var v T
	bb, err := Decompress(bbCompressed)
	if err != nil {
		return v, err
	}
	err = binary.Unmarshal(bb, &v)
	return v, err
}

func Compress(bb []byte) ([]byte, error) {
	bbCompressed, err := zstd.Compress(nil, bb)
	if err != nil {
		return []byte{}, err
	}
	return bbCompressed, nil
}

func Decompress(bbCompressed []byte) ([]byte, error) {
	bb, err := zstd.Decompress(nil, bbCompressed)
	if err != nil {
		return []byte{}, err
	}
	return bb, nil
}
