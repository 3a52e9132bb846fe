//go:build unix

package engine

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mmapHandle wraps a read-only memory mapping of the database file.
// Grounded in the bbolt-lineage reference files' db.mmap pattern
// (other_examples/d7bb4a2e_kanandev2024-bbolt__db.go.go,
// other_examples/a5988769_kawabatas-toy-boltdb__db.go.go): map
// PROT_READ/MAP_SHARED over the live fd. The mapping is made once at open
// and is not remapped when a later commit grows the file; it carries no
// lock of its own.
type mmapHandle struct {
	data []byte
}

// mmapFile maps the first size bytes of fd read-only.
func mmapFile(fd int, size int) (*mmapHandle, error) {
	if size == 0 {
		return &mmapHandle{}, nil
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &mmapHandle{data: data}, nil
}

// unmap releases the mapping, if any.
func (h *mmapHandle) unmap() error {
	if h == nil || h.data == nil {
		return nil
	}
	err := unix.Munmap(h.data)
	h.data = nil
	return err
}

// bytes returns the mapped region.
func (h *mmapHandle) bytes() []byte {
	if h == nil {
		return nil
	}
	return h.data
}
