// Package token defines the value types shared by every stage of the BPE
// trainer: a byte string and an ordered pair of byte strings.
package token

// Bytes is an immutable token: an arbitrary sequence of bytes, compared
// lexicographically by unsigned byte value. Go's native string comparison
// operators already do exactly this, so Bytes is just a named string rather
// than a wrapper type with custom Less/Equal methods.
type Bytes string

// Pair is an ordered pair of tokens: the left and right half of a candidate
// merge. It is comparable and therefore usable as a map key directly.
type Pair struct {
	First  Bytes
	Second Bytes
}

// Concat returns the token produced by merging p, i.e. First followed by
// Second.
func (p Pair) Concat() Bytes {
	return p.First + p.Second
}

// Less reports whether p sorts before q under the tie-break rule the merge
// engine's selection step uses: First compared first, Second breaking ties,
// both as unsigned byte sequences. This is the single place that rule is
// implemented; every comparison of two pairs in this module goes through it
// so the tie-break can never drift between the selector and its tests.
func (p Pair) Less(q Pair) bool {
	if p.First != q.First {
		return p.First < q.First
	}
	return p.Second < q.Second
}

// Greater reports whether p sorts strictly after q under the same rule.
func (p Pair) Greater(q Pair) bool {
	return q.Less(p)
}
