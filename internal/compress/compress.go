// Package compress applies whole-buffer compression to snapshot sections.
//
// The algorithm is recorded by name in the snapshot manifest, so a store
// can always decompress sections written with different settings.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm applied to snapshot sections.
type Compression string

const (
	// None stores sections uncompressed.
	None Compression = "none"
	// LZ4 favors speed over ratio.
	LZ4 Compression = "lz4"
	// Zstd favors ratio over speed.
	Zstd Compression = "zstd"
)

// ErrCorruptBlock is returned when a compressed section fails validation.
var ErrCorruptBlock = errors.New("corrupt compressed block")

// ByName resolves a manifest compression name. The empty string maps to
// None so manifests written before compression support still load.
func ByName(name string) (Compression, error) {
	switch Compression(name) {
	case "", None:
		return None, nil
	case LZ4:
		return LZ4, nil
	case Zstd:
		return Zstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

// Valid reports whether c is a known algorithm.
func (c Compression) Valid() bool {
	_, err := ByName(string(c))
	return err == nil
}

// lz4 blocks carry [UncompressedSize uint32][CompressedSize uint32] in
// little endian. CompressedSize of 0 means the payload is stored raw.
const lz4HeaderSize = 8

// EncodeAll and DecodeAll are safe for concurrent use on shared instances.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func zstdInit() {
	zstdOnce.Do(func() {
		zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		zstdDecoder, _ = zstd.NewReader(nil)
	})
}

// Compress returns data compressed with c. Empty input passes through
// unchanged for every algorithm.
func (c Compression) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch c {
	case None:
		return data, nil
	case LZ4:
		return compressLZ4(data)
	case Zstd:
		zstdInit()
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", string(c))
	}
}

// Decompress reverses Compress.
func (c Compression) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch c {
	case None:
		return data, nil
	case LZ4:
		return decompressLZ4(data)
	case Zstd:
		zstdInit()

		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorruptBlock, err)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", string(c))
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) > math.MaxUint32 {
		return nil, fmt.Errorf("section of %d bytes exceeds lz4 block limit", len(data))
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}

	// Incompressible payloads are stored raw, marked by CompressedSize 0.
	if n == 0 || n >= len(data) {
		out := make([]byte, lz4HeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[lz4HeaderSize:], data)

		return out, nil
	}

	out := make([]byte, lz4HeaderSize+n)
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(n))
	copy(out[lz4HeaderSize:], compressed[:n])

	return out, nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	if len(data) < lz4HeaderSize {
		return nil, fmt.Errorf("%w: truncated lz4 header", ErrCorruptBlock)
	}

	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])

	if compressedSize == 0 {
		if uint64(len(data)) < lz4HeaderSize+uint64(uncompressedSize) {
			return nil, fmt.Errorf("%w: raw payload shorter than header claims", ErrCorruptBlock)
		}

		return data[lz4HeaderSize : lz4HeaderSize+uncompressedSize], nil
	}

	if uint64(len(data)) < lz4HeaderSize+uint64(compressedSize) {
		return nil, fmt.Errorf("%w: payload shorter than header claims", ErrCorruptBlock)
	}

	out := make([]byte, uncompressedSize)

	n, err := lz4.UncompressBlock(data[lz4HeaderSize:lz4HeaderSize+compressedSize], out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptBlock, err)
	}

	if uint32(n) != uncompressedSize {
		return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlock)
	}

	return out, nil
}
