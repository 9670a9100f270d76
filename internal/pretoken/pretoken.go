// Package pretoken implements the fixed-regex pretokenizer: turning a byte
// range of a corpus into pretoken counts, splitting first on special tokens
// so a merge can never span a document boundary.
package pretoken

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/sync/errgroup"
)

// pattern is the fixed GPT-2-style pretokenization regex. The trailing
// `\s+(?!\S)` alternative needs a negative lookahead, which Go's stdlib
// regexp (RE2) cannot express, hence regexp2.
const pattern = `'(?:[sdmt]|ll|ve|re)| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// Tokenizer compiles the pretokenization regex once and holds the special
// tokens a corpus is split on before that regex ever runs.
type Tokenizer struct {
	re       *regexp2.Regexp
	specials []string // sorted longest-first, for longest-match-first splitting
}

// New compiles the fixed regex and sorts specials so that a special token
// that is a prefix of another (e.g. "<|im" vs "<|im_start|>") never
// shadows the longer one during splitting.
func New(specials []string) (*Tokenizer, error) {
	re, err := regexp2.Compile(pattern, regexp2.Unicode)
	if err != nil {
		return nil, fmt.Errorf("pretoken: compile pattern: %w", err)
	}

	sorted := make([]string, 0, len(specials))
	for _, s := range specials {
		if s != "" {
			sorted = append(sorted, s)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	return &Tokenizer{re: re, specials: sorted}, nil
}

// CountChunk splits text on every special token, then runs the fixed regex
// over each fragment, accumulating match counts into counts. counts is not
// reset first, so callers can reuse one map across multiple chunks.
func (tk *Tokenizer) CountChunk(text string, counts map[string]uint64) error {
	for _, frag := range splitOnSpecials(text, tk.specials) {
		if err := tk.countFragment(frag, counts); err != nil {
			return err
		}
	}
	return nil
}

func (tk *Tokenizer) countFragment(frag string, counts map[string]uint64) error {
	match, err := tk.re.FindStringMatch(frag)
	for match != nil && err == nil {
		counts[match.String()]++
		match, err = tk.re.FindNextMatch(match)
	}
	if err != nil {
		return fmt.Errorf("pretoken: match fragment: %w", err)
	}
	return nil
}

// splitOnSpecials cuts text at every exact-substring occurrence of a special
// token, dropping the special tokens themselves, and returns the fragments
// between them. specials must already be sorted longest-first so that at
// any position the longest candidate wins.
func splitOnSpecials(text string, specials []string) []string {
	if len(specials) == 0 {
		return []string{text}
	}

	var out []string
	start, i := 0, 0
	for i < len(text) {
		matched := ""
		for _, sp := range specials {
			if strings.HasPrefix(text[i:], sp) {
				matched = sp
				break
			}
		}
		if matched == "" {
			i++
			continue
		}
		if i > start {
			out = append(out, text[start:i])
		}
		i += len(matched)
		start = i
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// CountFile implements spec §4.2 end to end: read each [offsets[i],
// offsets[i+1]) byte range in its own goroutine (parallelism point 1), decode
// it as UTF-8 with loss on invalid sequences, pretokenize, and reduce every
// chunk-local counter into one global word_count. Workers <= 0 sets no
// limit on the group, so every chunk gets its own goroutine at once;
// trainpipeline resolves its GOMAXPROCS default before calling in.
//
// Concurrent os.File.ReadAt calls on the same handle are safe since they
// don't share the file's seek offset, which is what makes this fan-out
// embarrassingly parallel with no shared mutable state during execution.
func CountFile(ctx context.Context, f *os.File, offsets []int64, specials []string, workers int) (map[string]uint64, error) {
	tk, err := New(specials)
	if err != nil {
		return nil, err
	}

	n := len(offsets) - 1
	if n <= 0 {
		return map[string]uint64{}, nil
	}

	results := make([]map[string]uint64, n)

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i := 0; i < n; i++ {
		i := i
		start, end := offsets[i], offsets[i+1]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			buf := make([]byte, end-start)
			if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
				return fmt.Errorf("pretoken: read chunk [%d,%d): %w", start, end, err)
			}

			text := strings.ToValidUTF8(string(buf), "�")

			local := make(map[string]uint64)
			if err := tk.CountChunk(text, local); err != nil {
				return fmt.Errorf("pretoken: chunk [%d,%d): %w", start, end, err)
			}
			results[i] = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint64)
	for _, local := range results {
		for w, c := range local {
			merged[w] += c
		}
	}
	return merged, nil
}
