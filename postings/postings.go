// Package postings accumulates in-memory per-term posting lists, which
// is what the slice-chained block pool exists for: every term owns one
// logical slice of delta-encoded document IDs, and all terms share one
// pool with no per-term heap allocation. A single writer is repositioned
// between terms, so postings for thousands of terms interleave freely as
// documents arrive.
package postings

import (
	"errors"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/dystudio/blockpool"
)

// ErrDocOutOfOrder is returned when a document ID is added for a term
// that already saw a higher one. Postings are append-only and sorted.
var ErrDocOutOfOrder = errors.New("postings: document IDs must be non-decreasing per term")

// termPosting tracks one term's slice through the pool.
type termPosting struct {
	start   int32 // slice handle from StartNewSlice
	cursor  int32 // writer resume offset
	lastDoc uint32
	count   int
}

// Accumulator multiplexes per-term posting slices through one pool.
// Like the pool itself it is single-owner: one accumulator per indexing
// worker.
type Accumulator struct {
	pool   *blockpool.Pool
	writer *blockpool.SliceWriter
	reader *blockpool.SliceReader
	terms  map[string]*termPosting
	docs   *roaring.Bitmap
	total  int
}

// NewAccumulator creates an accumulator over the given pool. If pool is
// nil a default pool is created.
func NewAccumulator(pool *blockpool.Pool) *Accumulator {
	if pool == nil {
		pool = blockpool.New()
	}
	return &Accumulator{
		pool:   pool,
		writer: blockpool.NewSliceWriter(pool),
		reader: blockpool.NewSliceReader(pool),
		terms:  make(map[string]*termPosting),
		docs:   roaring.New(),
	}
}

// Add records an occurrence of term in doc. Document IDs must be
// non-decreasing per term; the same ID may repeat (one entry per
// occurrence, so the posting count doubles as a term frequency).
func (a *Accumulator) Add(term string, doc uint32) error {
	tp, ok := a.terms[term]
	if !ok {
		start := a.writer.StartNewSlice()
		a.writer.WriteInt(int32(doc)) // first entry is absolute
		a.terms[term] = &termPosting{
			start:   start,
			cursor:  a.writer.CurrentOffset(),
			lastDoc: doc,
			count:   1,
		}
	} else {
		if doc < tp.lastDoc {
			return ErrDocOutOfOrder
		}
		a.writer.Reset(tp.cursor)
		a.writer.WriteInt(int32(doc - tp.lastDoc))
		tp.cursor = a.writer.CurrentOffset()
		tp.lastDoc = doc
		tp.count++
	}

	a.docs.Add(doc)
	a.total++
	return nil
}

// Terms returns all accumulated terms in sorted order.
func (a *Accumulator) Terms() []string {
	out := make([]string, 0, len(a.terms))
	for term := range a.terms {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// TermCount returns the number of distinct terms.
func (a *Accumulator) TermCount() int { return len(a.terms) }

// PostingCount returns the total number of postings across all terms.
func (a *Accumulator) PostingCount() int { return a.total }

// Postings returns an iterator over the term's document IDs, in order.
// ok is false if the term was never added.
func (a *Accumulator) Postings(term string) (it *Iterator, ok bool) {
	tp, found := a.terms[term]
	if !found {
		return nil, false
	}
	r := blockpool.NewSliceReader(a.pool)
	r.Reset(tp.start, tp.cursor)
	return &Iterator{reader: r, remaining: tp.count}, true
}

// DocsWithTerm returns the set of documents containing term, or an empty
// bitmap if the term was never added.
func (a *Accumulator) DocsWithTerm(term string) *roaring.Bitmap {
	out := roaring.New()
	it, ok := a.Postings(term)
	if !ok {
		return out
	}
	for {
		doc, more := it.Next()
		if !more {
			return out
		}
		out.Add(doc)
	}
}

// Union returns the set of documents containing any of the given terms.
func (a *Accumulator) Union(terms ...string) *roaring.Bitmap {
	sets := make([]*roaring.Bitmap, 0, len(terms))
	for _, term := range terms {
		sets = append(sets, a.DocsWithTerm(term))
	}
	return roaring.ParOr(1, sets...)
}

// Docs returns a copy of the set of all documents seen by the accumulator.
func (a *Accumulator) Docs() *roaring.Bitmap {
	return a.docs.Clone()
}

// Reset discards all postings and recycles the pool for a new
// generation. Iterators from the previous generation become invalid.
func (a *Accumulator) Reset() {
	a.pool.Reset(true, true)
	a.terms = make(map[string]*termPosting)
	a.docs.Clear()
	a.total = 0
}

// Iterator replays one term's posting list.
type Iterator struct {
	reader    *blockpool.SliceReader
	last      uint32
	remaining int
	started   bool
}

// Next returns the next document ID. ok is false once the list is
// exhausted.
func (it *Iterator) Next() (doc uint32, ok bool) {
	if it.remaining == 0 {
		return 0, false
	}
	it.remaining--
	v := uint32(it.reader.ReadInt())
	if !it.started {
		it.started = true
		it.last = v
	} else {
		it.last += v
	}
	return it.last, true
}
