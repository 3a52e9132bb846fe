package engine

import (
	"github.com/tuannm99/thunder/internal/bx"
	"github.com/tuannm99/thunder/internal/omap"
	"github.com/tuannm99/thunder/internal/overflow"
)

// encodeDataSection serializes entries (already in ascending key order)
// as count(u64) || { key_len(u32) || key || value_field }* — the format
// a commit writes out and Open reads back when rebuilding the tree.
func encodeDataSection(entries []omap.Entry) []byte {
	out := make([]byte, 8)
	bx.PutU64(out, uint64(len(entries)))
	for _, e := range entries {
		var klen [4]byte
		bx.PutU32(klen[:], uint32(len(e.Key)))
		out = append(out, klen[:]...)
		out = append(out, e.Key...)
		out = overflow.EncodeValueField(out, e.Value.Bytes, 0, e.Value.Ref, e.Value.Overflow)
	}
	return out
}

// decodeDataSection parses the format written by encodeDataSection back
// into a fresh ordered map.
func decodeDataSection(buf []byte) (*omap.Tree, error) {
	tree := omap.New()
	if len(buf) < 8 {
		if len(buf) == 0 {
			return tree, nil
		}
		return nil, newError(KindCorrupted, "", ErrDataSectionTruncated)
	}
	count := bx.U64(buf[0:8])
	off := 8
	for i := uint64(0); i < count; i++ {
		if off+4 > len(buf) {
			return nil, newError(KindCorrupted, "", ErrDataSectionTruncated)
		}
		klen := int(bx.U32(buf[off : off+4]))
		off += 4
		if off+klen > len(buf) {
			return nil, newError(KindCorrupted, "", ErrDataSectionTruncated)
		}
		key := append([]byte{}, buf[off:off+klen]...)
		off += klen

		value, ref, isOverflow, consumed, err := overflow.DecodeValueField(buf[off:])
		if err != nil {
			return nil, newError(KindCorrupted, "", err)
		}
		off += consumed

		var v omap.Value
		if isOverflow {
			v = omap.OverflowValue(ref)
		} else {
			v = omap.InlineValue(append([]byte{}, value...))
		}
		tree.Insert(key, v)
	}
	return tree, nil
}
