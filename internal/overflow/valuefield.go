package overflow

import "github.com/tuannm99/thunder/internal/bx"

// Marker is the data-section sentinel: a value whose length marker
// equals Marker is followed by a 12-byte Ref instead of an inline
// length-prefixed value. 0xFFFFFFFF can never collide with a legitimate
// inline length because inline values are always shorter than the
// configured overflow threshold (far below 4 GiB).
const Marker uint32 = 0xFFFFFFFF

// EncodeValueField appends either an inline length-prefixed value or an
// overflow marker + Ref to dst, depending on useRef. threshold is not
// consulted; callers decide useRef with ShouldOverflow.
func EncodeValueField(dst []byte, value []byte, threshold int, ref Ref, useRef bool) []byte {
	if useRef {
		var marker [4]byte
		bx.PutU32(marker[:], Marker)
		dst = append(dst, marker[:]...)
		dst = append(dst, EncodeRef(ref)...)
		return dst
	}
	var lenBuf [4]byte
	bx.PutU32(lenBuf[:], uint32(len(value)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, value...)
	return dst
}

// ShouldOverflow reports whether a value of the given length must be
// spilled to an overflow chain rather than stored inline.
func ShouldOverflow(valueLen, threshold int) bool {
	return valueLen >= threshold
}

// DecodeValueFieldLen reads the 4-byte length/marker field at the start
// of buf. If it equals Marker, isOverflow is true and the caller should
// next read a 12-byte Ref; otherwise n is the inline value length.
func DecodeValueFieldLen(buf []byte) (n uint32, isOverflow bool) {
	v := bx.U32(buf)
	if v == Marker {
		return 0, true
	}
	return v, false
}

// DecodeValueField reads one full value field (inline bytes or an
// overflow Ref) from the start of buf, returning how many bytes it
// consumed so the caller can advance to the next field.
func DecodeValueField(buf []byte) (value []byte, ref Ref, isOverflow bool, consumed int, err error) {
	if len(buf) < 4 {
		return nil, Ref{}, false, 0, ErrCorruptChain
	}
	n, isOvf := DecodeValueFieldLen(buf)
	if isOvf {
		if len(buf) < 4+12 {
			return nil, Ref{}, false, 0, ErrCorruptChain
		}
		return nil, DecodeRef(buf[4 : 4+12]), true, 4 + 12, nil
	}
	total := 4 + int(n)
	if len(buf) < total {
		return nil, Ref{}, false, 0, ErrCorruptChain
	}
	return buf[4:total], Ref{}, false, total, nil
}
