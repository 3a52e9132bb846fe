package engine

import (
	"os"
	"sync"

	"github.com/tuannm99/thunder/internal/freelist"
	"github.com/tuannm99/thunder/internal/pagefmt"
)

// fileStore implements pageio.Store with positioned reads and writes
// over the database file. Reads are served from the read-only
// mmap region when one has been wired in and covers the requested
// page, falling back to a positioned read otherwise.
type fileStore struct {
	f        *os.File
	pageSize pagefmt.PageSize
	mapped   []byte
}

func newFileStore(f *os.File, pageSize pagefmt.PageSize) *fileStore {
	return &fileStore{f: f, pageSize: pageSize}
}

// setMmap wires the live mapping in as the preferred read source. Safe
// to call only while the store is not being read concurrently, i.e.
// once at open before any reader goroutine starts.
func (s *fileStore) setMmap(data []byte) {
	s.mapped = data
}

func (s *fileStore) PageSize() pagefmt.PageSize { return s.pageSize }

func (s *fileStore) ReadPage(id pagefmt.PageID, buf []byte) error {
	off := pagefmt.Offset(id, s.pageSize)
	if s.mapped != nil && off >= 0 && int(off)+len(buf) <= len(s.mapped) {
		copy(buf, s.mapped[off:int(off)+len(buf)])
		return nil
	}
	_, err := s.f.ReadAt(buf, off)
	return err
}

func (s *fileStore) WritePage(id pagefmt.PageID, buf []byte) error {
	_, err := s.f.WriteAt(buf, pagefmt.Offset(id, s.pageSize))
	return err
}

// tailAllocator hands out page IDs from a freelist first, falling back
// to extending the file by bumping a monotonic "next page" counter:
// allocate returns the smallest free page id, or extends the file.
type tailAllocator struct {
	mu       sync.Mutex
	free     *freelist.Freelist
	nextPage pagefmt.PageID
}

func newTailAllocator(free *freelist.Freelist, nextPage pagefmt.PageID) *tailAllocator {
	return &tailAllocator{free: free, nextPage: nextPage}
}

func (a *tailAllocator) Allocate() pagefmt.PageID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.free.Allocate(); ok {
		return id
	}
	id := a.nextPage
	a.nextPage++
	return id
}

func (a *tailAllocator) Free(id pagefmt.PageID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free.Free(id)
}

func (a *tailAllocator) snapshot() (*freelist.Freelist, pagefmt.PageID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.free, a.nextPage
}

// bumpPast advances nextPage to at least id, used when the commit
// pipeline's data-section/freelist layout for this commit claims page
// IDs past what the allocator had reserved.
func (a *tailAllocator) bumpPast(id pagefmt.PageID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nextPage < id {
		a.nextPage = id
	}
}
