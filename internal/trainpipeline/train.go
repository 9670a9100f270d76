// Package trainpipeline wires the chunk splitter, pretokenizer, and merge
// engine into the end-to-end training driver (spec §4.6).
package trainpipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/vocabforge/bpetrain/internal/chunk"
	"github.com/vocabforge/bpetrain/internal/merge"
	"github.com/vocabforge/bpetrain/internal/pretoken"
	"github.com/vocabforge/bpetrain/internal/token"
)

// ErrInvalidConfig is the sentinel wrapped by Train when the requested
// vocabulary size cannot fit 256 byte tokens plus the supplied specials.
var ErrInvalidConfig = errors.New("trainpipeline: invalid configuration")

// Options configures a training run.
type Options struct {
	InputPath     string
	VocabSize     int
	SpecialTokens []string
	Workers       int // <= 0 defaults to runtime.GOMAXPROCS(0)
	ChunkCount    int // <= 0 defaults to Workers
}

// Result is everything a training run produces.
type Result struct {
	Vocab      []token.Bytes
	Merges     []token.Pair
	NumWords   int
	ChunkCount int
}

// Train runs the full pipeline: validate, split the input into chunks,
// pretokenize them in parallel, build the merge engine, loop merges to the
// target vocabulary size, then append special tokens at contiguous ids.
//
// A canceled ctx stops the merge loop after the in-flight merge completes
// and returns the partial Result with a nil error (progress so far is valid
// and invariant-consistent, so it isn't a failure) unless cancellation
// happened before any merge was recorded, in which case the error wraps
// ctx.Err(). Cancellation during pretokenization surfaces as a non-nil error
// immediately, since no partial word_count is usable.
func Train(ctx context.Context, opts Options, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if opts.VocabSize < 256+len(opts.SpecialTokens) {
		return Result{}, fmt.Errorf("%w: vocab_size %d < 256 + %d special tokens", ErrInvalidConfig, opts.VocabSize, len(opts.SpecialTokens))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunkCount := opts.ChunkCount
	if chunkCount <= 0 {
		chunkCount = workers
	}

	if len(opts.SpecialTokens) == 0 {
		log.Warn("no special tokens supplied; chunk boundary discipline degrades to a single chunk")
	}

	f, err := os.Open(opts.InputPath)
	if err != nil {
		return Result{}, fmt.Errorf("trainpipeline: open input: %w", err)
	}
	defer f.Close()

	boundary := token.Bytes("")
	if len(opts.SpecialTokens) > 0 {
		boundary = token.Bytes(opts.SpecialTokens[0])
	}

	offsets, err := chunk.Split(f, chunkCount, boundary)
	if err != nil {
		return Result{}, fmt.Errorf("trainpipeline: split input: %w", err)
	}
	log.Info("split input into chunks", zap.Int("chunks", len(offsets)-1))

	wordCount, err := pretoken.CountFile(ctx, f, offsets, opts.SpecialTokens, workers)
	if err != nil {
		return Result{}, fmt.Errorf("trainpipeline: pretokenize: %w", err)
	}
	log.Info("pretokenized input", zap.Int("distinct_words", len(wordCount)))

	tr := merge.NewTrainer(wordCount)

	target := opts.VocabSize - 256 - len(opts.SpecialTokens)
	merged := 0
	for merged < target {
		if err := ctx.Err(); err != nil {
			if merged == 0 {
				return Result{}, fmt.Errorf("trainpipeline: canceled before any merge: %w", err)
			}
			log.Info("canceled mid-training, returning partial result", zap.Int("merges_completed", merged))
			break
		}

		p, ok := tr.SelectBest()
		if !ok {
			log.Warn("corpus exhausted of mergeable pairs before reaching target vocab size",
				zap.Int("merges_completed", merged), zap.Int("target", target))
			break
		}

		if workers > 1 {
			if _, err := tr.ApplyMergeParallel(ctx, p, workers); err != nil {
				if merged == 0 {
					return Result{}, fmt.Errorf("trainpipeline: canceled before any merge: %w", err)
				}
				log.Info("canceled mid-training, returning partial result", zap.Int("merges_completed", merged))
				break
			}
		} else {
			tr.ApplyMerge(p)
		}
		merged++
	}
	log.Info("merge loop complete", zap.Int("merges", merged))

	vocab := tr.Vocab()
	for _, s := range opts.SpecialTokens {
		vocab = append(vocab, token.Bytes(s))
	}

	return Result{
		Vocab:      vocab,
		Merges:     tr.Merges(),
		NumWords:   len(wordCount),
		ChunkCount: len(offsets) - 1,
	}, nil
}
