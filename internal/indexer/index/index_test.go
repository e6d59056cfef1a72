package index

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"
)

func scenarioCorpus() []Document {
	return []Document{
		{ID: 1, Text: "Side effects include pain."},
		{ID: 2, Text: "No side effect reported"},
		{ID: 3, Text: "Vaccine side effect noted"},
	}
}

func TestLookupAndIntersectScenario(t *testing.T) {
	ix := Build(scenarioCorpus())

	tests := []struct {
		name string
		got  PostingList
		want PostingList
	}{
		{"lookup side", ix.Lookup("side"), PostingList{1, 2, 3}},
		{"lookup effect", ix.Lookup("effect"), PostingList{2, 3}},
		{"lookup effects", ix.Lookup("effects"), PostingList{1}},
		{"intersect side effect", ix.Intersect("side", "effect"), PostingList{2, 3}},
		{"intersect effect side", ix.Intersect("effect", "side"), PostingList{2, 3}},
		{"intersect disjoint", ix.Intersect("effects", "vaccine"), PostingList{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !slices.Equal(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestDocumentFrequencyCountsDocumentsNotOccurrences(t *testing.T) {
	ix := Build([]Document{
		{ID: 7, Text: "malaria cases rise, malaria deaths fall"},
	})
	if df := ix.DocumentFrequency("malaria"); df != 1 {
		t.Fatalf("DocumentFrequency(malaria) = %d, want 1", df)
	}
	if got := ix.Lookup("malaria"); !slices.Equal(got, PostingList{7}) {
		t.Fatalf("Lookup(malaria) = %v, want [7]", got)
	}
}

func TestRepeatedDocumentIDDoesNotDuplicate(t *testing.T) {
	ix := Build([]Document{
		{ID: 4, Text: "malaria"},
		{ID: 4, Text: "malaria again"},
	})
	if got := ix.Lookup("malaria"); !slices.Equal(got, PostingList{4}) {
		t.Fatalf("Lookup(malaria) = %v, want [4]", got)
	}
	if ix.DocCount() != 1 {
		t.Fatalf("DocCount = %d, want 1", ix.DocCount())
	}
}

func TestEscapeMarkersProduceNoTerms(t *testing.T) {
	ix := Build([]Document{{ID: 1, Text: "Newline Tab"}})
	if ix.Terms() != 0 {
		t.Fatalf("Terms = %d, want 0", ix.Terms())
	}
	if ix.Contains("") {
		t.Fatal("empty term indexed")
	}
	if ix.DocCount() != 1 {
		t.Fatalf("DocCount = %d, want 1", ix.DocCount())
	}
}

func TestAbsentTerms(t *testing.T) {
	ix := Build(scenarioCorpus())
	if got := ix.Lookup("nonexistent-term"); got == nil || len(got) != 0 {
		t.Errorf("Lookup(absent) = %#v, want empty non-nil", got)
	}
	if got := ix.Intersect("nonexistent", "side"); len(got) != 0 {
		t.Errorf("Intersect(absent, side) = %v", got)
	}
	if got := ix.Intersect("side", "nonexistent"); len(got) != 0 {
		t.Errorf("Intersect(side, absent) = %v", got)
	}
	if df := ix.DocumentFrequency("nonexistent"); df != 0 {
		t.Errorf("DocumentFrequency(absent) = %d", df)
	}
}

func TestEmptyIndex(t *testing.T) {
	ix := Build(nil)
	if ix.Terms() != 0 || ix.DocCount() != 0 {
		t.Fatalf("empty index reports %d terms, %d docs", ix.Terms(), ix.DocCount())
	}
	if got := ix.Intersect("a", "b"); len(got) != 0 {
		t.Fatalf("Intersect on empty index = %v", got)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	ix := Build(scenarioCorpus())
	got := ix.Lookup("side")
	got[0] = 99
	if again := ix.Lookup("side"); again[0] != 1 {
		t.Fatalf("index mutated through Lookup result: %v", again)
	}
}

func TestOutOfOrderInputIsSorted(t *testing.T) {
	ix := Build([]Document{
		{ID: 30, Text: "vaccine"},
		{ID: 10, Text: "vaccine"},
		{ID: 20, Text: "vaccine"},
	})
	if got := ix.Lookup("vaccine"); !slices.Equal(got, PostingList{10, 20, 30}) {
		t.Fatalf("Lookup(vaccine) = %v", got)
	}
}

func randomCorpus(r *rand.Rand, docs, vocab int) []Document {
	words := make([]string, vocab)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	ids := r.Perm(docs * 3)[:docs]
	corpus := make([]Document, 0, docs)
	for _, id := range ids {
		n := r.Intn(8)
		text := ""
		for k := 0; k < n; k++ {
			text += words[r.Intn(vocab)] + " "
		}
		corpus = append(corpus, Document{ID: DocID(id), Text: text})
	}
	return corpus
}

func TestIndexInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	ix := Build(randomCorpus(r, 500, 40))

	for _, entry := range ix.Snapshot() {
		if entry.DocFreq != len(entry.Postings) {
			t.Errorf("%q: df %d != len(postings) %d", entry.Term, entry.DocFreq, len(entry.Postings))
		}
		if len(entry.Postings) == 0 {
			t.Errorf("%q: empty postings list", entry.Term)
		}
		for i := 1; i < len(entry.Postings); i++ {
			if entry.Postings[i-1] >= entry.Postings[i] {
				t.Errorf("%q: postings not strictly ascending at %d: %v", entry.Term, i, entry.Postings)
				break
			}
		}
	}
}

func TestIntersectMatchesSetIntersection(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	ix := Build(randomCorpus(r, 300, 12))
	snapshot := ix.Snapshot()
	terms := make([]string, 0, len(snapshot)+1)
	for _, e := range snapshot {
		terms = append(terms, e.Term)
	}
	terms = append(terms, "missing")

	for _, t1 := range terms {
		for _, t2 := range terms {
			in2 := make(map[DocID]struct{})
			for _, id := range ix.Lookup(t2) {
				in2[id] = struct{}{}
			}
			want := PostingList{}
			for _, id := range ix.Lookup(t1) {
				if _, ok := in2[id]; ok {
					want = append(want, id)
				}
			}
			slices.Sort(want)

			got := ix.Intersect(t1, t2)
			if !slices.Equal(got, want) {
				t.Fatalf("Intersect(%q, %q) = %v, want %v", t1, t2, got, want)
			}
			if rev := ix.Intersect(t2, t1); !slices.Equal(rev, got) {
				t.Fatalf("Intersect not symmetric for %q, %q: %v vs %v", t1, t2, got, rev)
			}
		}
	}
}

func TestIntersectSorted(t *testing.T) {
	tests := []struct {
		name string
		a, b PostingList
		want PostingList
	}{
		{"both empty", nil, nil, PostingList{}},
		{"one empty", PostingList{1, 2}, nil, PostingList{}},
		{"identical", PostingList{1, 2, 3}, PostingList{1, 2, 3}, PostingList{1, 2, 3}},
		{"interleaved", PostingList{1, 3, 5, 7}, PostingList{2, 3, 4, 7, 9}, PostingList{3, 7}},
		{"disjoint", PostingList{1, 2}, PostingList{3, 4}, PostingList{}},
		{"tail match", PostingList{1, 100}, PostingList{50, 100}, PostingList{100}},
		{"negative ids", PostingList{-5, -1, 4}, PostingList{-5, 4}, PostingList{-5, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IntersectSorted(tt.a, tt.b)
			if !slices.Equal(got, tt.want) {
				t.Errorf("IntersectSorted(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFingerprintIgnoresInputOrder(t *testing.T) {
	docs := scenarioCorpus()
	a := Build(docs)
	slices.Reverse(docs)
	b := Build(docs)
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("fingerprint depends on input order")
	}
	c := Build(append(docs, Document{ID: 4, Text: "extra"}))
	if c.Fingerprint() == a.Fingerprint() {
		t.Fatal("fingerprint unchanged after adding a document")
	}
}

func TestBuilderResetsAfterFinalize(t *testing.T) {
	b := NewBuilder()
	b.Add(Document{ID: 1, Text: "first corpus"})
	first := b.Finalize()
	b.Add(Document{ID: 2, Text: "second"})
	second := b.Finalize()

	if first.Contains("second") || second.Contains("first") {
		t.Fatal("finalized indexes share state")
	}
	if b.DocCount() != 0 || b.Terms() != 0 {
		t.Fatalf("builder not reset: %d docs, %d terms", b.DocCount(), b.Terms())
	}
}

func TestConcurrentReaders(t *testing.T) {
	ix := Build(scenarioCorpus())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 200; k++ {
				if got := ix.Intersect("side", "effect"); !slices.Equal(got, PostingList{2, 3}) {
					t.Errorf("concurrent Intersect = %v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestPostingListString(t *testing.T) {
	if s := (PostingList{1, 22, 333}).String(); s != "1 22 333" {
		t.Fatalf("String = %q", s)
	}
}
