package omap

import "github.com/tuannm99/thunder/internal/overflow"

// Value is the payload stored at a leaf: either inline bytes, or a
// reference to an overflow chain for values at or above the configured
// overflow threshold.
type Value struct {
	Bytes    []byte
	Ref      overflow.Ref
	Overflow bool
}

// InlineValue wraps plain bytes as a non-overflow Value.
func InlineValue(b []byte) Value {
	return Value{Bytes: b}
}

// OverflowValue wraps an overflow.Ref as an overflow Value.
func OverflowValue(ref overflow.Ref) Value {
	return Value{Ref: ref, Overflow: true}
}

// Entry pairs a key with its Value, used by full-scan and range results.
type Entry struct {
	Key   []byte
	Value Value
}
