package merge

import "github.com/vocabforge/bpetrain/internal/token"

// wordDelta is the read-only-input, owned-output of rebuilding a single
// word's representation after a merge. It carries everything apply needs to
// patch the shared tables without re-touching rep or wordCount.
type wordDelta struct {
	word   string
	newRep wordRep
	freq   map[token.Pair]int64    // net pairFreq delta contributed by this word
	remove map[token.Pair]struct{} // pairs to drop w from in pairToWords
	add    map[token.Pair]struct{} // pairs to add w to in pairToWords
}

// rebuildWord implements spec §4.5 phase 2 for a single word: greedy,
// non-overlapping left-to-right replacement of every occurrence of p with
// its concatenation, plus the pairFreq/pairToWords delta that replacement
// implies. It only reads old and count; it never touches Trainer state,
// which is what makes it safe to call concurrently across words (see
// apply_parallel.go).
func rebuildWord(old wordRep, count int64, p token.Pair) wordDelta {
	merged := p.Concat()

	newRep := make(wordRep, 0, len(old))
	i := 0
	for i < len(old) {
		if i+1 < len(old) && old[i] == p.First && old[i+1] == p.Second {
			newRep = append(newRep, merged)
			i += 2
		} else {
			newRep = append(newRep, old[i])
			i++
		}
	}

	freq := make(map[token.Pair]int64)
	oldPairs := make(map[token.Pair]struct{})
	newPairs := make(map[token.Pair]struct{})

	for i := 0; i+1 < len(old); i++ {
		q := token.Pair{First: old[i], Second: old[i+1]}
		freq[q] -= count
		oldPairs[q] = struct{}{}
	}
	for i := 0; i+1 < len(newRep); i++ {
		q := token.Pair{First: newRep[i], Second: newRep[i+1]}
		freq[q] += count
		newPairs[q] = struct{}{}
	}

	remove := make(map[token.Pair]struct{})
	for q := range oldPairs {
		if _, stillPresent := newPairs[q]; !stillPresent {
			remove[q] = struct{}{}
		}
	}
	add := make(map[token.Pair]struct{})
	for q := range newPairs {
		if _, wasPresent := oldPairs[q]; !wasPresent {
			add[q] = struct{}{}
		}
	}

	return wordDelta{newRep: newRep, freq: freq, remove: remove, add: add}
}

// ApplyMerge implements spec §4.5 in full for a single merge pair p,
// sequentially: record the merge and assign it the next id (phase 1),
// rebuild every affected word and patch the shared tables (phase 2), then
// drop zeroed/emptied entries (phase 3). Returns the new token's bytes.
func (t *Trainer) ApplyMerge(p token.Pair) token.Bytes {
	newToken := t.recordMerge(p)

	words := t.pairToWords[p]
	deltas := make([]wordDelta, 0, len(words))
	for w := range words {
		old := t.rep[w]
		count := int64(t.wordCount[w])
		d := rebuildWord(old, count, p)
		d.word = w
		deltas = append(deltas, d)
	}

	touched := t.commitDeltas(deltas)
	t.cleanup(p, touched)
	t.checkConsumed(p)
	return newToken
}

// recordMerge is spec §4.5 phase 1: append to merges, assign the next id.
func (t *Trainer) recordMerge(p token.Pair) token.Bytes {
	newToken := p.Concat()
	t.merges = append(t.merges, p)
	id := len(t.vocab)
	t.vocab = append(t.vocab, newToken)
	t.byID[newToken] = id
	return newToken
}

// commitDeltas applies every word's rebuild result to the shared tables and
// returns the set of pairs any delta touched, so cleanup only has to
// re-check those instead of scanning the whole table. This is the only
// place pairFreq, pairToWords, and rep are mutated, so ApplyMerge and
// ApplyMergeParallel share one reduction path and therefore one cleanup
// implementation (spec §9's note on the parallel variant's bug: there is no
// second code path to drift out of sync with this one).
func (t *Trainer) commitDeltas(deltas []wordDelta) map[token.Pair]struct{} {
	touched := make(map[token.Pair]struct{})

	for _, d := range deltas {
		for q, delta := range d.freq {
			t.pairFreq[q] += delta
			touched[q] = struct{}{}
		}
		for q := range d.remove {
			if set, ok := t.pairToWords[q]; ok {
				delete(set, d.word)
			}
			touched[q] = struct{}{}
		}
		for q := range d.add {
			set := t.pairToWords[q]
			if set == nil {
				set = make(map[string]struct{})
				t.pairToWords[q] = set
			}
			set[d.word] = struct{}{}
			touched[q] = struct{}{}
		}
		t.rep[d.word] = d.newRep
	}

	return touched
}

// cleanup is spec §4.5 phase 3: among the pairs touched by this merge, drop
// pairFreq entries that reached zero and pairToWords entries that became
// empty. just is the pair that was just merged, which must be fully absent
// from both tables afterward regardless of whether the arithmetic above
// already drove it to zero.
func (t *Trainer) cleanup(just token.Pair, touched map[token.Pair]struct{}) {
	for q := range touched {
		if freq, ok := t.pairFreq[q]; ok && freq <= 0 {
			delete(t.pairFreq, q)
		}
		if set, ok := t.pairToWords[q]; ok && len(set) == 0 {
			delete(t.pairToWords, q)
		}
	}
	delete(t.pairFreq, just)
	delete(t.pairToWords, just)
}

// checkConsumed enforces spec §4.5's phase-3 guarantee: the just-merged
// pair must be fully absent from both tables once cleanup has run.
func (t *Trainer) checkConsumed(just token.Pair) {
	if _, ok := t.pairFreq[just]; ok {
		invariantViolation("pairFreq[%v] still present after merge", just)
	}
	if _, ok := t.pairToWords[just]; ok {
		invariantViolation("pairToWords[%v] still present after merge", just)
	}
}
