// Package merge implements the incremental BPE merge engine: the word
// representations, pair index, and pair frequencies that let the trainer
// repeatedly pick the best pair and efficiently re-express every affected
// word, without ever rescanning the whole corpus.
package merge

import (
	"github.com/vocabforge/bpetrain/internal/token"
)

// wordRep is the current tokenization of a word: an ordered sequence of
// tokens whose concatenation equals the word's UTF-8 bytes.
type wordRep []token.Bytes

// Trainer owns the five core tables the merge engine maintains across
// iterations. Nothing outside this package mutates rep, pairFreq, or
// pairToWords directly; every mutation goes through ApplyMerge or
// ApplyMergeParallel so the invariants below are never violated mid-update.
//
// Invariants, true at the start and end of every call to ApplyMerge(Parallel):
//  1. pairFreq[p] == sum over w of wordCount[w] * occurrences(p, rep[w])
//  2. for p with pairFreq[p] > 0: pairToWords[p] == {w : p occurs in rep[w]}
//  3. pairFreq has no entries <= 0; pairToWords has no empty sets
//  4. vocab[0..255] are the 256 single-byte tokens; later ids are contiguous
type Trainer struct {
	wordCount   map[string]uint64
	rep         map[string]wordRep
	pairFreq    map[token.Pair]int64
	pairToWords map[token.Pair]map[string]struct{}

	vocab  []token.Bytes
	byID   map[token.Bytes]int
	merges []token.Pair
}

// NewTrainer performs the merge engine's initialization (spec §4.3): seeds
// the 256 single-byte vocabulary entries, sets every word's representation
// to its one-byte-per-token form, and builds the initial pair index from
// those representations.
func NewTrainer(wordCount map[string]uint64) *Trainer {
	t := &Trainer{
		wordCount:   wordCount,
		rep:         make(map[string]wordRep, len(wordCount)),
		pairFreq:    make(map[token.Pair]int64),
		pairToWords: make(map[token.Pair]map[string]struct{}),
		vocab:       make([]token.Bytes, 256),
		byID:        make(map[token.Bytes]int, 256),
	}

	for i := 0; i < 256; i++ {
		b := token.Bytes([]byte{byte(i)})
		t.vocab[i] = b
		t.byID[b] = i
	}

	for w, count := range wordCount {
		rep := byteRep(w)
		t.rep[w] = rep
		t.indexWord(w, rep, int64(count), +1)
	}

	return t
}

// byteRep returns the one-byte-per-token representation of a word's UTF-8
// bytes.
func byteRep(w string) wordRep {
	rep := make(wordRep, len(w))
	for i := 0; i < len(w); i++ {
		rep[i] = token.Bytes(w[i : i+1])
	}
	return rep
}

// indexWord adds (sign=+1) or removes (sign=-1) count's contribution to
// pairFreq for every adjacent pair in rep, and with sign=+1 also adds w to
// pairToWords for each of those pairs; sign=-1 leaves pairToWords as it is.
// Only initialization calls it (sign=+1 over the full corpus); merges go
// through rebuildWord and commitDeltas in apply.go instead.
func (t *Trainer) indexWord(w string, rep wordRep, count int64, sign int64) {
	for i := 0; i+1 < len(rep); i++ {
		p := token.Pair{First: rep[i], Second: rep[i+1]}
		t.pairFreq[p] += sign * count

		if sign > 0 {
			set := t.pairToWords[p]
			if set == nil {
				set = make(map[string]struct{})
				t.pairToWords[p] = set
			}
			set[w] = struct{}{}
		}
	}
}

// SelectBest implements spec §4.4: the pair maximizing (pairFreq[p], p),
// i.e. highest frequency first, ties broken toward the lexicographically
// greatest pair. Returns ok=false if no pair has positive frequency.
func (t *Trainer) SelectBest() (best token.Pair, ok bool) {
	var bestFreq int64

	for p, freq := range t.pairFreq {
		if freq <= 0 {
			continue // cleanup should have removed these; defensive only
		}
		switch {
		case !ok:
			best, bestFreq, ok = p, freq, true
		case freq > bestFreq:
			best, bestFreq = p, freq
		case freq == bestFreq && p.Greater(best):
			best = p
		}
	}

	return best, ok
}

// VocabSize returns the number of tokens assigned so far (256 + len(merges)).
func (t *Trainer) VocabSize() int { return len(t.vocab) }

// Vocab returns the id-ordered vocabulary built so far. The returned slice
// is owned by the caller (a defensive copy), safe to mutate or retain.
func (t *Trainer) Vocab() []token.Bytes {
	out := make([]token.Bytes, len(t.vocab))
	copy(out, t.vocab)
	return out
}

// Merges returns the merge rules applied so far, in application order. The
// returned slice is a defensive copy.
func (t *Trainer) Merges() []token.Pair {
	out := make([]token.Pair, len(t.merges))
	copy(out, t.merges)
	return out
}

// Rep returns the current representation of word w, for tests and for
// merge-order-integrity verification. The returned slice is a defensive
// copy.
func (t *Trainer) Rep(w string) ([]token.Bytes, bool) {
	rep, ok := t.rep[w]
	if !ok {
		return nil, false
	}
	out := make([]token.Bytes, len(rep))
	copy(out, rep)
	return out, true
}

// PairFreq exposes the current frequency of p, for property tests.
func (t *Trainer) PairFreq(p token.Pair) int64 { return t.pairFreq[p] }

// PairWords exposes the current word set for p, for property tests. The
// returned slice is a snapshot, not a live view.
func (t *Trainer) PairWords(p token.Pair) []string {
	set := t.pairToWords[p]
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	return out
}

// Words returns every word the trainer knows about, for property tests that
// need to iterate the whole corpus.
func (t *Trainer) Words() []string {
	out := make([]string, 0, len(t.wordCount))
	for w := range t.wordCount {
		out = append(out, w)
	}
	return out
}
