package merge

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vocabforge/bpetrain/internal/token"
)

// ApplyMergeParallel is the optional §5 parallelism point 2: it performs the
// same three phases as ApplyMerge, but computes each affected word's
// rebuild (phase 2) across a pool of goroutines instead of one at a time.
// Every goroutine only reads rep/wordCount (via the closed-over snapshot
// built before the fan-out) and returns an owned wordDelta; commitDeltas
// and cleanup — the only code that mutates shared state — still run once,
// serially, on the calling goroutine, exactly as in ApplyMerge. This keeps
// the two entry points byte-identical in result: same selected pair in,
// same merges/vocab/rep/pairFreq/pairToWords out.
//
// workers <= 0 defaults to runtime.GOMAXPROCS(0). A canceled ctx stops the
// fan-out early; rebuildWord runs before phase 1 is recorded, so on
// cancellation the error is returned with the trainer's tables untouched —
// merges/vocab are never advanced without a matching rep/pairFreq update.
func (t *Trainer) ApplyMergeParallel(ctx context.Context, p token.Pair, workers int) (token.Bytes, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	words := make([]string, 0, len(t.pairToWords[p]))
	for w := range t.pairToWords[p] {
		words = append(words, w)
	}

	results := make([]wordDelta, len(words))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, w := range words {
		i, w := i, w
		old := t.rep[w]
		count := int64(t.wordCount[w])

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			d := rebuildWord(old, count, p)
			d.word = w
			results[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	newToken := t.recordMerge(p)
	touched := t.commitDeltas(results)
	t.cleanup(p, touched)
	t.checkConsumed(p)
	return newToken, nil
}
