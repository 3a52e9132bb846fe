package wal

import "errors"

var (
	ErrBadMagic      = errors.New("wal: bad segment magic")
	ErrBadVersion    = errors.New("wal: unsupported segment version")
	ErrShortHeader   = errors.New("wal: short segment header")
	ErrCorruptRecord = errors.New("wal: corrupt record payload")
	ErrBadCRC        = errors.New("wal: record checksum mismatch")
	ErrClosed        = errors.New("wal: log is closed")
)
