// Package pageio defines the narrow page-level read/write contract that
// the overflow manager and the commit pipeline program against, so each
// can be driven by either a direct file descriptor or the read-only mmap
// region. A platform lacking memory mapping can substitute buffered
// reads with a read cache behind the same Store interface.
package pageio

import "github.com/tuannm99/thunder/internal/pagefmt"

// PageReader reads a single fixed-size page into buf, which must already
// be sized to the store's page size.
type PageReader interface {
	ReadPage(id pagefmt.PageID, buf []byte) error
}

// PageWriter writes a single fixed-size page at id, extending the
// backing file if necessary.
type PageWriter interface {
	WritePage(id pagefmt.PageID, buf []byte) error
}

// Store is the full read/write page contract used by the overflow
// manager and the commit pipeline.
type Store interface {
	PageReader
	PageWriter
	PageSize() pagefmt.PageSize
}

// Allocator hands out PageIDs for new pages, consulting a freelist
// before falling back to extending the file (tail allocation), and
// accepts pages back for reuse.
type Allocator interface {
	Allocate() pagefmt.PageID
	Free(id pagefmt.PageID)
}
