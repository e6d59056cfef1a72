package index

import (
	"slices"

	"github.com/searchlab/tweetindex/internal/indexer/tokenizer"
)

// Builder accumulates postings for documents in input order. It is owned by
// a single goroutine; Finalize hands the result over as an immutable Index.
type Builder struct {
	postings map[string]map[DocID]struct{}
	docs     map[DocID]struct{}
}

func NewBuilder() *Builder {
	return &Builder{
		postings: make(map[string]map[DocID]struct{}),
		docs:     make(map[DocID]struct{}),
	}
}

// Add tokenizes doc and records its id against every term it contains. A
// term seen twice in one document, or a document id supplied twice, counts
// once. Add returns the number of distinct terms in doc.
func (b *Builder) Add(doc Document) int {
	b.docs[doc.ID] = struct{}{}
	terms := tokenizer.Normalize(doc.Text)
	for _, term := range terms {
		set, exists := b.postings[term]
		if !exists {
			set = make(map[DocID]struct{}, 1)
			b.postings[term] = set
		}
		set[doc.ID] = struct{}{}
	}
	return len(terms)
}

func (b *Builder) DocCount() int {
	return len(b.docs)
}

func (b *Builder) Terms() int {
	return len(b.postings)
}

// Finalize sorts every postings list and returns the Index. The builder is
// reset and may be reused for an unrelated corpus.
func (b *Builder) Finalize() *Index {
	ix := &Index{
		postings: make(map[string]PostingList, len(b.postings)),
		docCount: len(b.docs),
	}
	for term, set := range b.postings {
		list := make(PostingList, 0, len(set))
		for id := range set {
			list = append(list, id)
		}
		slices.Sort(list)
		ix.postings[term] = list
	}
	ix.fingerprint = ix.computeFingerprint()

	b.postings = make(map[string]map[DocID]struct{})
	b.docs = make(map[DocID]struct{})
	return ix
}

// Build indexes docs in order and finalizes the result.
func Build(docs []Document) *Index {
	b := NewBuilder()
	for _, doc := range docs {
		b.Add(doc)
	}
	return b.Finalize()
}
