package vocab

import (
	"bytes"
	"testing"

	"github.com/vocabforge/bpetrain/internal/token"
)

func TestVocabularyBasic(t *testing.T) {
	v := New([]token.Bytes{"a", "b", "c"})

	if v.Size() != 3 {
		t.Errorf("size: got %d, want 3", v.Size())
	}

	tok, ok := v.Token(0)
	if !ok || tok != "a" {
		t.Errorf("Token(0): got %q, want 'a'", tok)
	}

	id, ok := v.ID("b")
	if !ok || id != 1 {
		t.Errorf("ID('b'): got %d, want 1", id)
	}

	if _, ok := v.Token(99); ok {
		t.Error("Token(99) should return false")
	}
	if _, ok := v.ID("xyz"); ok {
		t.Error("ID('xyz') should return false")
	}
}

func TestBasicVocabulary(t *testing.T) {
	v := Basic()
	if v.Size() != 256 {
		t.Fatalf("Basic() size: got %d, want 256", v.Size())
	}
	for i := 0; i < 256; i++ {
		tok, ok := v.Token(i)
		if !ok || len(tok) != 1 || tok[0] != byte(i) {
			t.Errorf("Token(%d): got %q", i, tok)
		}
	}
}

func TestVocabularyDecode(t *testing.T) {
	v := New([]token.Bytes{"h", "e", "l", "o", " ", "he", "ll"})

	testCases := []struct {
		ids  []int
		want string
	}{
		{[]int{}, ""},
		{[]int{0, 1, 2, 2, 3}, "hello"},
		{[]int{5, 6, 3}, "hello"},
		{[]int{0, 1, 2, 2, 3, 4}, "hello "},
	}

	for _, tc := range testCases {
		got := string(v.Decode(tc.ids))
		if got != tc.want {
			t.Errorf("Decode(%v): got %q, want %q", tc.ids, got, tc.want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	original := New([]token.Bytes{
		token.Bytes([]byte{0}), token.Bytes([]byte{1}), token.Bytes([]byte{0xff}), "ab", " the",
	})

	var buf bytes.Buffer
	if err := Save(&buf, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Size() != original.Size() {
		t.Fatalf("size mismatch: got %d, want %d", loaded.Size(), original.Size())
	}
	for id := 0; id < original.Size(); id++ {
		want, _ := original.Token(id)
		got, ok := loaded.Token(id)
		if !ok || got != want {
			t.Errorf("id %d: got %q, want %q", id, got, want)
		}
	}
}

func TestLoadRejectsSparseIDs(t *testing.T) {
	_, err := Load(bytes.NewBufferString("YQ== 0\nYg== 2\n"))
	if err == nil {
		t.Error("expected an error for a gap in ids")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	_, err := Load(bytes.NewBufferString("YQ== 0\nYg== 0\n"))
	if err == nil {
		t.Error("expected an error for a duplicate id")
	}
}

func TestMergesRoundTrip(t *testing.T) {
	merges := []token.Pair{
		{First: "a", Second: "b"},
		{First: "ab", Second: "ab"},
		{First: token.Bytes([]byte{0xff}), Second: " "},
	}

	var buf bytes.Buffer
	if err := SaveMerges(&buf, merges); err != nil {
		t.Fatalf("SaveMerges: %v", err)
	}

	got, err := LoadMerges(&buf)
	if err != nil {
		t.Fatalf("LoadMerges: %v", err)
	}
	if len(got) != len(merges) {
		t.Fatalf("got %d merges, want %d", len(got), len(merges))
	}
	for i := range merges {
		if got[i] != merges[i] {
			t.Errorf("merge %d: got %+v, want %+v", i, got[i], merges[i])
		}
	}
}

func TestFromRanksOrdersByRank(t *testing.T) {
	v := FromRanks(map[token.Bytes]int{"c": 2, "a": 0, "b": 1})

	for id, want := range []token.Bytes{"a", "b", "c"} {
		got, ok := v.Token(id)
		if !ok || got != want {
			t.Errorf("id %d: got %q, want %q", id, got, want)
		}
	}
}
