package rbtree

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Column block tags. LZ4 reports incompressible input by writing nothing,
// in which case the raw bytes are kept.
const (
	blockRaw byte = iota
	blockLZ4
)

// CompressUInt32Slice packs a slice of uint32-s into a tagged LZ4 block.
func CompressUInt32Slice(data []uint32) ([]byte, error) {
	raw := make([]byte, len(data)*uint32ByteSize)
	for idx, value := range data {
		binary.LittleEndian.PutUint32(raw[idx*uint32ByteSize:], value)
	}

	compressed := make([]byte, 1+lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed[1:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	if written == 0 || written >= len(raw) {
		return append([]byte{blockRaw}, raw...), nil
	}

	compressed[0] = blockLZ4

	return compressed[:1+written], nil
}

// DecompressUInt32Slice restores a block produced by CompressUInt32Slice.
// `result` must be preallocated to the original length.
func DecompressUInt32Slice(data []byte, result []uint32) error {
	if len(data) == 0 {
		if len(result) == 0 {
			return nil
		}

		return fmt.Errorf("%w: empty block for %d values", ErrCorruptColumn, len(result))
	}

	raw := data[1:]

	if data[0] == blockLZ4 {
		raw = make([]byte, len(result)*uint32ByteSize)

		read, err := lz4.UncompressBlock(data[1:], raw)
		if err != nil {
			return fmt.Errorf("lz4 uncompress: %w", err)
		}

		raw = raw[:read]
	}

	if len(raw) != len(result)*uint32ByteSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrCorruptColumn, len(raw), len(result)*uint32ByteSize)
	}

	for idx := range result {
		result[idx] = binary.LittleEndian.Uint32(raw[idx*uint32ByteSize:])
	}

	return nil
}

// DeltaEncodeUInt32Slice replaces every element but the first with its
// difference from the previous one, in place. Differences wrap around.
func DeltaEncodeUInt32Slice(data []uint32) {
	for idx := len(data) - 1; idx > 0; idx-- {
		data[idx] -= data[idx-1]
	}
}

// DeltaDecodeUInt32Slice undoes DeltaEncodeUInt32Slice in place.
func DeltaDecodeUInt32Slice(data []uint32) {
	for idx := 1; idx < len(data); idx++ {
		data[idx] += data[idx-1]
	}
}
