package overflow

import "errors"

var (
	// ErrChainTooLong is returned when a chain would exceed or already
	// exceeds MaxChainLength pages (invariant I5).
	ErrChainTooLong = errors.New("overflow: chain exceeds MAX_CHAIN_LENGTH")

	// ErrCRCMismatch is returned by ReadChain when a page's payload does
	// not match its stored CRC32.
	ErrCRCMismatch = errors.New("overflow: page CRC32 mismatch")

	// ErrCorruptChain is returned when chain bookkeeping (data_len or
	// total length) is internally inconsistent.
	ErrCorruptChain = errors.New("overflow: corrupt chain")
)
