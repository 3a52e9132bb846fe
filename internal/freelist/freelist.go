// Package freelist tracks reusable page IDs with lowest-first allocation,
// backed by a sorted slice since allocation order, not recency, is what
// matters for reusing freed pages.
package freelist

import (
	"sort"

	"github.com/tuannm99/thunder/internal/bx"
	"github.com/tuannm99/thunder/internal/pagefmt"
)

// Freelist is an ordered set of free PageIDs. Allocate always returns the
// smallest free id; Free is idempotent.
type Freelist struct {
	ids []pagefmt.PageID // kept sorted ascending, deduplicated
}

// New returns an empty freelist.
func New() *Freelist {
	return &Freelist{}
}

// Len returns the number of free pages currently tracked.
func (f *Freelist) Len() int {
	return len(f.ids)
}

// Allocate removes and returns the smallest free PageID. ok is false if
// the freelist is empty, in which case the caller should allocate a new
// tail page instead.
func (f *Freelist) Allocate() (id pagefmt.PageID, ok bool) {
	if len(f.ids) == 0 {
		return 0, false
	}
	id = f.ids[0]
	f.ids = f.ids[1:]
	return id, true
}

// Free marks id as reusable. Freeing the same id twice is a no-op.
func (f *Freelist) Free(id pagefmt.PageID) {
	i := sort.Search(len(f.ids), func(i int) bool { return f.ids[i] >= id })
	if i < len(f.ids) && f.ids[i] == id {
		return // already free
	}
	f.ids = append(f.ids, 0)
	copy(f.ids[i+1:], f.ids[i:])
	f.ids[i] = id
}

// Contains reports whether id is currently tracked as free. Exposed
// mainly for tests.
func (f *Freelist) Contains(id pagefmt.PageID) bool {
	i := sort.Search(len(f.ids), func(i int) bool { return f.ids[i] >= id })
	return i < len(f.ids) && f.ids[i] == id
}

// IDs returns a copy of the currently free page IDs in ascending order.
func (f *Freelist) IDs() []pagefmt.PageID {
	out := make([]pagefmt.PageID, len(f.ids))
	copy(out, f.ids)
	return out
}

// Encode serializes the freelist as a length-prefixed sorted list of
// little-endian u64 page IDs.
func (f *Freelist) Encode() []byte {
	buf := make([]byte, 8+8*len(f.ids))
	bx.PutU64(buf, uint64(len(f.ids)))
	off := 8
	for _, id := range f.ids {
		bx.PutU64(buf[off:], uint64(id))
		off += 8
	}
	return buf
}

// Decode reconstructs a Freelist from bytes produced by Encode.
func Decode(buf []byte) (*Freelist, error) {
	if len(buf) < 8 {
		return nil, ErrTruncated
	}
	n := bx.U64(buf)
	want := 8 + 8*int(n)
	if uint64(want-8)/8 != n || len(buf) < want {
		return nil, ErrTruncated
	}
	ids := make([]pagefmt.PageID, n)
	off := 8
	for i := range ids {
		ids[i] = pagefmt.PageID(bx.U64(buf[off:]))
		off += 8
	}
	return &Freelist{ids: ids}, nil
}
