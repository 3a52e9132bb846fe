// Package wal is Thunder's write-ahead log: a sequence of fixed-header
// segment files, each holding a stream of length-prefixed, CRC32-checked
// records, with segmented rotation and multi-record-type logging driven
// by internal/groupcommit rather than one append call per page.
package wal

import (
	"bufio"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/tuannm99/thunder/internal/bx"
)

// DefaultMaxSegmentBytes is the rotation threshold for a single segment
// file.
const DefaultMaxSegmentBytes = 64 << 20

// SyncMode selects how aggressively Sync calls reach disk.
type SyncMode int

const (
	// SyncImmediate fsyncs after every appended record.
	SyncImmediate SyncMode = iota
	// SyncBatched fsyncs at most once per caller-chosen interval; the
	// interval itself is enforced by internal/groupcommit, not here.
	SyncBatched
	// SyncNone never fsyncs; durability is sacrificed for throughput.
	SyncNone
)

// LSN identifies a record's position as (segment_id << 32) | offset.
type LSN uint64

func makeLSN(segmentID uint64, offset uint32) LSN {
	return LSN(segmentID<<32 | uint64(offset))
}

// SegmentID extracts the originating segment from an LSN.
func (l LSN) SegmentID() uint64 { return uint64(l) >> 32 }

// Offset extracts the byte offset within the originating segment.
func (l LSN) Offset() uint32 { return uint32(l) }

// WAL is a single-writer-at-a-time append log over a directory of
// rotating segment files.
type WAL struct {
	mu sync.Mutex

	dir             string
	maxSegmentBytes int64
	syncMode        SyncMode

	segmentID uint64
	file      *os.File
	w         *bufio.Writer
	offset    int64
	synced    int64
}

// Options configures a WAL's rotation and durability behavior.
type Options struct {
	MaxSegmentBytes int64
	SyncMode        SyncMode
}

// DefaultOptions returns the default rotation size and an
// immediate-sync policy.
func DefaultOptions() Options {
	return Options{MaxSegmentBytes: DefaultMaxSegmentBytes, SyncMode: SyncImmediate}
}

// Open opens (creating if necessary) the WAL rooted at dir, resuming
// onto the highest-numbered existing segment or starting segment 0.
func Open(dir string, opts Options) (*WAL, error) {
	if opts.MaxSegmentBytes <= 0 {
		opts.MaxSegmentBytes = DefaultMaxSegmentBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	ids, err := listSegmentIDs(dir)
	if err != nil {
		return nil, err
	}

	w := &WAL{dir: dir, maxSegmentBytes: opts.MaxSegmentBytes, syncMode: opts.SyncMode}

	var segmentID uint64
	if len(ids) > 0 {
		segmentID = ids[len(ids)-1]
	}
	if err := w.openSegmentForAppend(segmentID, len(ids) == 0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WAL) openSegmentForAppend(segmentID uint64, fresh bool) error {
	path := segmentPath(w.dir, segmentID)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}

	if fresh || info.Size() == 0 {
		hdr := encodeSegmentHeader(segmentHeader{SegmentID: segmentID, FirstLSN: 0})
		if _, err := f.WriteAt(hdr, 0); err != nil {
			_ = f.Close()
			return err
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return err
		}
		w.offset = SegmentHeaderSize
	} else {
		// Resuming an existing segment: scan it to find the valid
		// tail, tolerating a torn trailing record.
		offset, err := scanValidTail(f)
		if err != nil {
			_ = f.Close()
			return err
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return err
		}
		w.offset = offset
	}

	w.segmentID = segmentID
	w.file = f
	w.w = bufio.NewWriterSize(f, 64<<10)
	w.synced = w.offset
	return nil
}

// scanValidTail walks every record in f from just after the header,
// returning the offset just past the last fully valid record.
func scanValidTail(f *os.File) (int64, error) {
	if _, err := f.Seek(SegmentHeaderSize, io.SeekStart); err != nil {
		return 0, err
	}
	r := bufio.NewReader(f)
	offset := int64(SegmentHeaderSize)
	for {
		n, ok := tryReadRecord(r)
		if !ok {
			break
		}
		offset += int64(n)
	}
	return offset, nil
}

// Append writes rec to the active segment (rotating first if it would
// not fit) and returns its LSN. It does not fsync; call Sync for
// durability.
func (w *WAL) Append(rec Record) (LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, ErrClosed
	}

	buf := encodeRecord(rec)
	if w.offset+int64(len(buf)) > w.maxSegmentBytes && w.offset > SegmentHeaderSize {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	lsn := makeLSN(w.segmentID, uint32(w.offset))
	if _, err := w.w.Write(buf); err != nil {
		return 0, err
	}
	w.offset += int64(len(buf))

	if w.syncMode == SyncImmediate {
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	}
	return lsn, nil
}

func (w *WAL) rotateLocked() error {
	if err := w.syncLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	return w.openSegmentForAppend(w.segmentID+1, true)
}

// Sync flushes buffered writes and fsyncs the active segment file.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *WAL) syncLocked() error {
	if w.file == nil {
		return ErrClosed
	}
	if w.syncMode == SyncNone {
		return w.w.Flush()
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.synced = w.offset
	return nil
}

// Close flushes and closes the active segment.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.syncLocked()
	cerr := w.file.Close()
	w.file = nil
	if err != nil {
		return err
	}
	return cerr
}

// Visit is the callback signature for Replay.
type Visit func(lsn LSN, rec Record) error

// Replay reads every record across all segments in ascending order,
// invoking visit for each, and tolerates a torn tail record at the very
// end of the newest segment (the crash-recovery case where the last
// write was interrupted mid-record).
func (w *WAL) Replay(visit Visit) error {
	ids, err := listSegmentIDs(w.dir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := replaySegment(w.dir, id, visit); err != nil {
			return err
		}
	}
	return nil
}

func replaySegment(dir string, segmentID uint64, visit Visit) error {
	f, err := os.Open(segmentPath(dir, segmentID))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	hdrBuf := make([]byte, SegmentHeaderSize)
	if _, err := io.ReadFull(f, hdrBuf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return err
	}
	if _, err := decodeSegmentHeader(hdrBuf); err != nil {
		return err
	}

	r := bufio.NewReader(f)
	offset := int64(SegmentHeaderSize)
	for {
		rec, n, ok := readRecord(r)
		if !ok {
			return nil
		}
		if err := visit(makeLSN(segmentID, uint32(offset)), rec); err != nil {
			return err
		}
		offset += int64(n)
	}
}

// readRecord reads one record, returning its total on-disk size. ok is
// false at a clean EOF or at a torn/corrupt tail record, both of which
// recovery treats identically: stop here.
func readRecord(r *bufio.Reader) (Record, int, bool) {
	hdr := make([]byte, recordHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return Record{}, 0, false
	}
	length := bx.U32(hdr[0:4])
	typ := RecordType(hdr[4])
	wantCRC := bx.U32(hdr[5:9])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Record{}, 0, false
	}

	crcInput := make([]byte, 1+len(payload))
	crcInput[0] = byte(typ)
	copy(crcInput[1:], payload)
	if crc32.ChecksumIEEE(crcInput) != wantCRC {
		return Record{}, 0, false
	}

	return Record{Type: typ, Payload: payload}, recordHeaderSize + int(length), true
}

// tryReadRecord is readRecord without returning the parsed record,
// used to find the valid tail offset when resuming a segment.
func tryReadRecord(r *bufio.Reader) (int, bool) {
	_, n, ok := readRecord(r)
	return n, ok
}

// TruncateBefore permanently deletes every segment strictly older than
// the one containing lsn, implementing the log's retention side of
// checkpointing.
func (w *WAL) TruncateBefore(lsn LSN) error {
	ids, err := listSegmentIDs(w.dir)
	if err != nil {
		return err
	}
	keepFrom := lsn.SegmentID()
	for _, id := range ids {
		if id < keepFrom {
			if err := os.Remove(segmentPath(w.dir, id)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

// ActiveSegmentBytes reports the logical size of the segment currently
// being written, used by the checkpoint policy's size trigger.
func (w *WAL) ActiveSegmentBytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}
