package wal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tuannm99/thunder/internal/bx"
)

// SegmentHeaderSize is the fixed-size header written at the start of
// every segment file.
const SegmentHeaderSize = 64

const (
	segmentMagic   uint32 = 0x574C4F47 // "WLOG"
	segmentVersion uint32 = 1
)

// segmentHeader is the 64-byte preamble of a WAL segment file: magic(4),
// version(4), segment_id(8), first_lsn(8), reserved(40).
type segmentHeader struct {
	SegmentID uint64
	FirstLSN  uint64
}

func encodeSegmentHeader(h segmentHeader) []byte {
	buf := make([]byte, SegmentHeaderSize)
	bx.PutU32(buf[0:4], segmentMagic)
	bx.PutU32(buf[4:8], segmentVersion)
	bx.PutU64(buf[8:16], h.SegmentID)
	bx.PutU64(buf[16:24], h.FirstLSN)
	return buf
}

func decodeSegmentHeader(buf []byte) (segmentHeader, error) {
	if len(buf) < SegmentHeaderSize {
		return segmentHeader{}, ErrShortHeader
	}
	if bx.U32(buf[0:4]) != segmentMagic {
		return segmentHeader{}, ErrBadMagic
	}
	if bx.U32(buf[4:8]) != segmentVersion {
		return segmentHeader{}, ErrBadVersion
	}
	return segmentHeader{
		SegmentID: bx.U64(buf[8:16]),
		FirstLSN:  bx.U64(buf[16:24]),
	}, nil
}

// segmentFileName produces a fixed-width, zero-padded name so a
// directory listing sorts in segment order.
func segmentFileName(segmentID uint64) string {
	return fmt.Sprintf("%016d.wal", segmentID)
}

func segmentPath(dir string, segmentID uint64) string {
	return filepath.Join(dir, segmentFileName(segmentID))
}

// listSegmentIDs returns every segment id present in dir, ascending.
func listSegmentIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var id uint64
		if _, err := fmt.Sscanf(e.Name(), "%016d.wal", &id); err == nil {
			ids = append(ids, id)
		}
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids, nil
}
