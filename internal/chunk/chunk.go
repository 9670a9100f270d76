// Package chunk partitions a file into byte ranges aligned on a boundary
// token, so that the pretokenizer can process ranges in parallel without
// inventing cross-document word pairs at a chunk seam.
package chunk

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/vocabforge/bpetrain/internal/token"
)

// scanWindow is the size of the forward-scan window used to locate a
// boundary token near a uniform guess. 4 KiB balances syscall count against
// over-reading past the boundary.
const scanWindow = 4096

// Split partitions f into at most k byte ranges, returning the sorted,
// deduplicated list of offsets b0=0 < b1 < ... < bm = size (m <= k). Each
// interior offset is the first occurrence of boundary at or after the
// uniform guess i*floor(size/k); if boundary never occurs again before EOF,
// that guess collapses to size, merging the trailing chunks.
//
// k <= 1 or an empty boundary short-circuits to a single chunk covering the
// whole file: there is nothing meaningful to align on, and scanning for an
// empty needle would match everywhere.
func Split(f *os.File, k int, boundary token.Bytes) ([]int64, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("chunk: stat input: %w", err)
	}
	size := info.Size()

	if k <= 1 || boundary == "" || size == 0 {
		return []int64{0, size}, nil
	}

	needle := []byte(boundary)
	guessStep := size / int64(k)
	if guessStep == 0 {
		return []int64{0, size}, nil
	}

	offsets := make([]int64, 0, k+1)
	offsets = append(offsets, 0)

	for i := int64(1); i < int64(k); i++ {
		guess := i * guessStep
		if guess >= size {
			break
		}
		found, err := seekBoundary(f, guess, size, needle)
		if err != nil {
			return nil, fmt.Errorf("chunk: scan for boundary at offset %d: %w", guess, err)
		}
		offsets = append(offsets, found)
	}

	offsets = append(offsets, size)
	return dedupSorted(offsets), nil
}

// seekBoundary scans forward from guess in scanWindow-sized, overlapping
// windows for the first occurrence of needle, returning size if none is
// found before EOF.
func seekBoundary(f *os.File, guess, size int64, needle []byte) (int64, error) {
	if _, err := f.Seek(guess, io.SeekStart); err != nil {
		return 0, err
	}
	r := bufio.NewReaderSize(f, scanWindow)

	pos := guess
	carry := make([]byte, 0, len(needle))

	for {
		window := make([]byte, scanWindow)
		n, readErr := r.Read(window)
		window = window[:n]

		buf := append(carry, window...)
		if idx := bytes.Index(buf, needle); idx >= 0 {
			return pos - int64(len(carry)) + int64(idx), nil
		}

		if readErr == io.EOF {
			return size, nil
		}
		if readErr != nil {
			return 0, readErr
		}

		pos += int64(n)
		if keep := len(needle) - 1; keep > 0 && len(buf) >= keep {
			carry = append(carry[:0], buf[len(buf)-keep:]...)
		} else {
			carry = append(carry[:0], buf...)
		}
	}
}

func dedupSorted(offsets []int64) []int64 {
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	out := offsets[:0:0]
	for i, o := range offsets {
		if i == 0 || o != out[len(out)-1] {
			out = append(out, o)
		}
	}
	return out
}
