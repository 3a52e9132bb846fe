// Package overflow implements the chained overflow-page subsystem used
// for values too large to store inline in the data section: a
// next-page-id write/read chain over Thunder's configurable page size,
// with CRC32-per-page validation and a bounded maximum chain length.
package overflow

import (
	"hash/crc32"

	"github.com/tuannm99/thunder/internal/bx"
	"github.com/tuannm99/thunder/internal/pagefmt"
	"github.com/tuannm99/thunder/internal/pageio"
)

// HeaderSize is the fixed 24-byte header at the start of every overflow
// page: next_page(8) | data_len(4) | flags(4) | crc32(4) | reserved(4).
const HeaderSize = 24

const (
	offNext    = 0
	offDataLen = 8
	offFlags   = 12
	offCRC32   = 16
	offReserved = 20
)

// NoNext marks the tail page of an overflow chain.
const NoNext pagefmt.PageID = 0

// MaxChainLength bounds the number of pages a single overflow value may
// span (invariant I5).
const MaxChainLength = 1 << 20

// Ref describes a value stored out-of-line as a chain of overflow pages.
// It is the 12-byte OverflowRef from the data-section format:
// start_page(8) | total_len(4).
type Ref struct {
	StartPage pagefmt.PageID
	TotalLen  uint32
}

// EncodeRef serializes a Ref to its fixed 12-byte wire form.
func EncodeRef(r Ref) []byte {
	buf := make([]byte, 12)
	bx.PutU64(buf[0:], uint64(r.StartPage))
	bx.PutU32(buf[8:], r.TotalLen)
	return buf
}

// DecodeRef parses a 12-byte OverflowRef.
func DecodeRef(buf []byte) Ref {
	return Ref{
		StartPage: pagefmt.PageID(bx.U64(buf[0:])),
		TotalLen:  bx.U32(buf[8:]),
	}
}

// Manager writes and reads chained overflow pages against a PageIO store
// and an allocator. ChecksumEnabled may be turned off as a global option
// to skip per-page CRC32 validation entirely.
type Manager struct {
	Store         pageio.Store
	Alloc         pageio.Allocator
	ChecksumEnabled bool
}

// NewManager returns a Manager with per-page CRC32 validation enabled.
func NewManager(store pageio.Store, alloc pageio.Allocator) *Manager {
	return &Manager{Store: store, Alloc: alloc, ChecksumEnabled: true}
}

func (m *Manager) payloadCap() int {
	return int(m.Store.PageSize()) - HeaderSize
}

// numPagesFor computes how many overflow pages a value of totalLen bytes
// needs, given a per-page payload capacity. A zero-length value still
// needs exactly one page.
func numPagesFor(totalLen, payloadCap int) int {
	n := (totalLen + payloadCap - 1) / payloadCap
	if n == 0 {
		n = 1
	}
	return n
}

// WriteChain splits value into ceil(len/payloadCap) pages, allocates
// them, chains them via next_page, and returns the Ref the data section
// should store. A zero-length value still occupies exactly one page.
func (m *Manager) WriteChain(value []byte) (Ref, error) {
	capBytes := m.payloadCap()
	total := len(value)
	numPages := numPagesFor(total, capBytes)
	if numPages > MaxChainLength {
		return Ref{}, ErrChainTooLong
	}

	pageIDs := make([]pagefmt.PageID, numPages)
	for i := range pageIDs {
		pageIDs[i] = m.Alloc.Allocate()
	}

	offset := 0
	for i, pid := range pageIDs {
		chunkLen := total - offset
		if chunkLen > capBytes {
			chunkLen = capBytes
		}

		buf := make([]byte, m.Store.PageSize())
		next := NoNext
		if i+1 < numPages {
			next = pageIDs[i+1]
		}
		bx.PutU64(buf[offNext:], uint64(next))
		bx.PutU32(buf[offDataLen:], uint32(chunkLen))
		bx.PutU32(buf[offFlags:], 0)

		if chunkLen > 0 {
			copy(buf[HeaderSize:HeaderSize+chunkLen], value[offset:offset+chunkLen])
		}
		if m.ChecksumEnabled {
			crc := crc32.ChecksumIEEE(buf[HeaderSize : HeaderSize+chunkLen])
			bx.PutU32(buf[offCRC32:], crc)
		}

		if err := m.Store.WritePage(pid, buf); err != nil {
			return Ref{}, err
		}
		offset += chunkLen
	}

	return Ref{StartPage: pageIDs[0], TotalLen: uint32(total)}, nil
}

// ReadChain walks the chain starting at ref.StartPage, validating each
// page's CRC32 (unless disabled) and concatenating payloads.
func (m *Manager) ReadChain(ref Ref) ([]byte, error) {
	out := make([]byte, 0, ref.TotalLen)
	pid := ref.StartPage
	buf := make([]byte, m.Store.PageSize())

	for i := 0; ; i++ {
		if i >= MaxChainLength {
			return nil, ErrChainTooLong
		}
		if err := m.Store.ReadPage(pid, buf); err != nil {
			return nil, err
		}

		dataLen := int(bx.U32(buf[offDataLen:]))
		if dataLen > m.payloadCap() {
			return nil, ErrCorruptChain
		}
		payload := buf[HeaderSize : HeaderSize+dataLen]

		if m.ChecksumEnabled {
			want := bx.U32(buf[offCRC32:])
			if crc32.ChecksumIEEE(payload) != want {
				return nil, ErrCRCMismatch
			}
		}

		out = append(out, payload...)

		next := pagefmt.PageID(bx.U64(buf[offNext:]))
		if next == NoNext {
			break
		}
		pid = next
	}

	if uint32(len(out)) != ref.TotalLen {
		return nil, ErrCorruptChain
	}
	return out, nil
}

// FreeChain walks the chain and returns each page to the allocator. The
// engine's commit path does not call it: pages of an overwritten or
// deleted entry's chain are never returned to the freelist.
func (m *Manager) FreeChain(ref Ref) error {
	pid := ref.StartPage
	buf := make([]byte, m.Store.PageSize())
	for i := 0; ; i++ {
		if i >= MaxChainLength {
			return ErrChainTooLong
		}
		if err := m.Store.ReadPage(pid, buf); err != nil {
			return err
		}
		next := pagefmt.PageID(bx.U64(buf[offNext:]))
		m.Alloc.Free(pid)
		if next == NoNext {
			return nil
		}
		pid = next
	}
}
