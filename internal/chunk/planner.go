// Package chunk splits a source file into word-aligned byte ranges and
// distributes them over worker ranks.
package chunk

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"DistReduce/internal/types"
)

// Offsets returns the raw block starts for a file of fileSize bytes: blocks
// of blockSize bytes until less than one block remains, which becomes the
// final block. An empty file has no blocks.
func Offsets(fileSize, blockSize int64) []int64 {
	if fileSize <= 0 || blockSize <= 0 {
		return nil
	}
	offsets := []int64{0}
	for off := int64(0); off+blockSize < fileSize; off += blockSize {
		offsets = append(offsets, off+blockSize)
	}
	return offsets
}

// Plan computes the byte ranges for src. Every raw boundary b > 0 moves to
// the first whitespace byte at or after b-1, so a token crossing b stays
// whole in the earlier range and the two neighbours share the moved
// boundary. Zero-length ranges, left behind when one token covers a whole
// block, are dropped.
func Plan(src io.ReaderAt, fileSize, blockSize int64) ([]types.ByteRange, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	offsets := Offsets(fileSize, blockSize)
	if len(offsets) == 0 {
		return nil, nil
	}

	bounds := make([]int64, 0, len(offsets)+1)
	bounds = append(bounds, 0)
	for _, off := range offsets[1:] {
		aligned, err := align(src, off, fileSize)
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, aligned)
	}
	bounds = append(bounds, fileSize)

	ranges := make([]types.ByteRange, 0, len(offsets))
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		if end > fileSize {
			end = fileSize
		}
		if end <= start {
			continue
		}
		ranges = append(ranges, types.ByteRange{Start: start, Length: end - start})
	}
	return ranges, nil
}

func align(src io.ReaderAt, off, fileSize int64) (int64, error) {
	pos := off - 1
	n, err := WordSeek(src, pos, fileSize)
	if err != nil {
		return 0, err
	}
	aligned := pos + n
	if aligned > fileSize {
		aligned = fileSize
	}
	return aligned, nil
}

// WordSeek counts the non-whitespace bytes starting at off, stopping at the
// first whitespace byte or at fileSize.
func WordSeek(src io.ReaderAt, off, fileSize int64) (int64, error) {
	if off >= fileSize {
		return 0, nil
	}
	r := bufio.NewReaderSize(io.NewSectionReader(src, off, fileSize-off), 512)
	var n int64
	for {
		c, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return 0, types.IOError("word seek", err)
		}
		if IsSpace(c) {
			return n, nil
		}
		n++
	}
}

// IsSpace reports whether c is an ASCII whitespace byte.
func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Assign deals ranges round-robin over ranks 1..worldSize-1. The result is
// indexed by rank; the coordinator's slot stays empty.
func Assign(ranges []types.ByteRange, worldSize int) [][]types.ByteRange {
	out := make([][]types.ByteRange, worldSize)
	workers := worldSize - 1
	if workers < 1 {
		return out
	}
	for i, r := range ranges {
		rank := 1 + i%workers
		out[rank] = append(out[rank], r)
	}
	return out
}
