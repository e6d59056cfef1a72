// Package index holds the non-positional inverted index: a dictionary of
// terms, each mapped to a strictly ascending list of the documents that
// contain it. An Index is built once by a Builder and is read-only after
// that, so any number of goroutines may query it without locking.
package index

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
)

// DocID identifies a document. Tweet ids are numeric, so ordering is numeric.
type DocID int64

// Document is one record handed to the builder.
type Document struct {
	ID   DocID
	Text string
}

// PostingList is a strictly ascending list of document ids.
type PostingList []DocID

// TermEntry is one dictionary row as exposed by Snapshot.
type TermEntry struct {
	Term     string      `json:"term"`
	DocFreq  int         `json:"document_frequency"`
	Postings PostingList `json:"postings"`
}

// Index is the finalized dictionary and postings store.
type Index struct {
	postings    map[string]PostingList
	docCount    int
	fingerprint string
}

// Lookup returns the postings of term, or an empty list when the term is
// not in the dictionary. The returned slice is a copy.
func (ix *Index) Lookup(term string) PostingList {
	p, ok := ix.postings[term]
	if !ok {
		return PostingList{}
	}
	return slices.Clone(p)
}

// Intersect returns the documents that contain both terms, ascending.
func (ix *Index) Intersect(term1, term2 string) PostingList {
	p1, ok := ix.postings[term1]
	if !ok {
		return PostingList{}
	}
	p2, ok := ix.postings[term2]
	if !ok {
		return PostingList{}
	}
	return IntersectSorted(p1, p2)
}

// DocumentFrequency is the number of distinct documents containing term.
func (ix *Index) DocumentFrequency(term string) int {
	return len(ix.postings[term])
}

// Contains reports whether term is in the dictionary.
func (ix *Index) Contains(term string) bool {
	_, ok := ix.postings[term]
	return ok
}

// Terms returns the dictionary size.
func (ix *Index) Terms() int {
	return len(ix.postings)
}

// DocCount returns the number of distinct documents that were added,
// including those that contributed no terms.
func (ix *Index) DocCount() int {
	return ix.docCount
}

// Snapshot returns every dictionary entry sorted by term.
func (ix *Index) Snapshot() []TermEntry {
	terms := make([]string, 0, len(ix.postings))
	for term := range ix.postings {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	entries := make([]TermEntry, 0, len(terms))
	for _, term := range terms {
		p := ix.postings[term]
		entries = append(entries, TermEntry{
			Term:     term,
			DocFreq:  len(p),
			Postings: slices.Clone(p),
		})
	}
	return entries
}

// Fingerprint is a stable hash of the index contents. Two indexes built
// from the same documents share a fingerprint regardless of input order.
func (ix *Index) Fingerprint() string {
	return ix.fingerprint
}

func (ix *Index) computeFingerprint() string {
	terms := make([]string, 0, len(ix.postings))
	for term := range ix.postings {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(ix.docCount))
	h.Write(buf[:])
	for _, term := range terms {
		h.Write([]byte(term))
		h.Write([]byte{0})
		for _, id := range ix.postings[term] {
			binary.LittleEndian.PutUint64(buf[:], uint64(id))
			h.Write(buf[:])
		}
		h.Write([]byte{0xff})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// String renders the postings list as space-separated ids.
func (p PostingList) String() string {
	var b strings.Builder
	for i, id := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
	}
	return b.String()
}
