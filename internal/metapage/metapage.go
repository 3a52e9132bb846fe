// Package metapage implements the dual meta-page atomic commit protocol:
// serialization, FNV-1a checksum, validation, and selecting the current
// meta page between the two candidates kept at PageID 0 and 1.
package metapage

import (
	"hash/fnv"

	"github.com/tuannm99/thunder/internal/bx"
	"github.com/tuannm99/thunder/internal/pagefmt"
)

// Size is the fixed, checksummed portion of a meta page. The remainder of
// the page up to the configured page size is zero-padded.
const Size = 88

const (
	offMagic     = 0
	offVersion   = 4
	offPageSize  = 8
	offTxID      = 12
	offRoot      = 20
	offFreelist  = 28
	offPageCount = 36
	offReserved  = 44 // 12 bytes, zero-filled
	offChecksum  = 56
	offCheckLSN  = 64
	offCheckTS   = 72
	offCheckCnt  = 80
)

// Meta is the fixed-size metadata record that anchors a Thunder database:
// the root of the live ordered map, the freelist location, the current
// transaction id, and the checkpoint bookkeeping fields.
type Meta struct {
	Magic                 uint32
	Version               uint32
	PageSize              pagefmt.PageSize
	TxID                  uint64
	Root                  pagefmt.PageID
	Freelist              pagefmt.PageID
	PageCount             uint64
	Checksum              uint64
	CheckpointLSN         uint64
	CheckpointTimestamp   uint64
	CheckpointEntryCount  uint64
}

// New builds a fresh Meta for a brand-new database file at the given
// transaction id and page size, with an empty data section.
func New(txid uint64, ps pagefmt.PageSize) Meta {
	m := Meta{
		Magic:    pagefmt.Magic,
		Version:  pagefmt.FormatVersion,
		PageSize: ps,
		TxID:     txid,
		Root:     0,
		Freelist: 0,
		PageCount: 0,
	}
	m.Checksum = m.computeChecksum()
	return m
}

// computeChecksum hashes bytes [0..56) and [64..88) of the serialized
// meta with FNV-1a; the checksum field itself at [56..64) is excluded.
func (m Meta) computeChecksum() uint64 {
	buf := make([]byte, Size)
	m.encodeInto(buf)

	h := fnv.New64a()
	_, _ = h.Write(buf[0:offChecksum])
	_, _ = h.Write(buf[offCheckLSN:Size])
	return h.Sum64()
}

// encodeInto writes every field except the checksum itself, which the
// caller fills in separately (ToBytes) or computes from this encoding
// (computeChecksum).
func (m Meta) encodeInto(buf []byte) {
	bx.PutU32(buf[offMagic:], m.Magic)
	bx.PutU32(buf[offVersion:], m.Version)
	bx.PutU32(buf[offPageSize:], uint32(m.PageSize))
	bx.PutU64(buf[offTxID:], m.TxID)
	bx.PutU64(buf[offRoot:], uint64(m.Root))
	bx.PutU64(buf[offFreelist:], uint64(m.Freelist))
	bx.PutU64(buf[offPageCount:], m.PageCount)
	// offReserved..offChecksum is left zeroed.
	bx.PutU64(buf[offCheckLSN:], m.CheckpointLSN)
	bx.PutU64(buf[offCheckTS:], m.CheckpointTimestamp)
	bx.PutU64(buf[offCheckCnt:], m.CheckpointEntryCount)
}

// Seal recomputes the checksum over m's current fields. Callers that
// build a Meta with New and then set Root/Freelist/PageCount/checkpoint
// fields directly must call Seal before ToBytes, or the checksum will
// not match the mutated fields.
func (m Meta) Seal() Meta {
	m.Checksum = m.computeChecksum()
	return m
}

// ToBytes serializes m into a page-sized buffer, zero-padded beyond the
// fixed Size header.
func (m Meta) ToBytes(pageSize pagefmt.PageSize) []byte {
	buf := make([]byte, pageSize)
	m.encodeInto(buf)
	bx.PutU64(buf[offChecksum:], m.Checksum)
	return buf
}

// FromBytes decodes a Meta from the first Size bytes of buf. It does not
// validate; call Validate or ValidateWithPageSize afterwards.
func FromBytes(buf []byte) Meta {
	var m Meta
	m.Magic = bx.U32(buf[offMagic:])
	m.Version = bx.U32(buf[offVersion:])
	m.PageSize = pagefmt.PageSize(bx.U32(buf[offPageSize:]))
	m.TxID = bx.U64(buf[offTxID:])
	m.Root = pagefmt.PageID(bx.U64(buf[offRoot:]))
	m.Freelist = pagefmt.PageID(bx.U64(buf[offFreelist:]))
	m.PageCount = bx.U64(buf[offPageCount:])
	m.Checksum = bx.U64(buf[offChecksum:])
	m.CheckpointLSN = bx.U64(buf[offCheckLSN:])
	m.CheckpointTimestamp = bx.U64(buf[offCheckTS:])
	m.CheckpointEntryCount = bx.U64(buf[offCheckCnt:])
	return m
}

// Validate checks magic, format version, page size enum membership, and
// checksum. It never checks the meta's page size against a caller's
// expected value; use ValidateWithPageSize for that.
func (m Meta) Validate() error {
	if m.Magic != pagefmt.Magic {
		return &InvalidMetaPageError{Reason: "bad magic", Got: uint64(m.Magic)}
	}
	if m.Version > pagefmt.FormatVersion {
		return &InvalidMetaPageError{Reason: "format version too new", Got: uint64(m.Version)}
	}
	if !m.PageSize.Valid() {
		return &InvalidMetaPageError{Reason: "invalid page size", Got: uint64(m.PageSize)}
	}
	if m.computeChecksum() != m.Checksum {
		return &InvalidMetaPageError{Reason: "checksum mismatch", Got: m.Checksum, Want: m.computeChecksum()}
	}
	return nil
}

// ValidateWithPageSize runs Validate and additionally requires the meta's
// recorded page size to equal expected.
func (m Meta) ValidateWithPageSize(expected pagefmt.PageSize) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.PageSize != expected {
		return &PageSizeMismatchError{Expected: expected, Got: m.PageSize}
	}
	return nil
}

// SelectCurrent returns whichever of meta0/meta1 is "current" per I1: the
// one with the greater txid among those that validate. If only one
// validates, it is current. If neither validates, ok is false.
func SelectCurrent(meta0, meta1 Meta) (current Meta, slot int, ok bool) {
	err0 := meta0.Validate()
	err1 := meta1.Validate()

	switch {
	case err0 == nil && err1 == nil:
		if meta1.TxID > meta0.TxID {
			return meta1, 1, true
		}
		return meta0, 0, true
	case err0 == nil:
		return meta0, 0, true
	case err1 == nil:
		return meta1, 1, true
	default:
		return Meta{}, -1, false
	}
}

// SlotForTxID implements I3: commit with txid even writes to page 0, odd
// writes to page 1.
func SlotForTxID(txid uint64) pagefmt.PageID {
	if txid%2 == 0 {
		return pagefmt.MetaPageID0
	}
	return pagefmt.MetaPageID1
}
