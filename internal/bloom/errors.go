package bloom

import "errors"

// ErrTruncated is returned by Decode when the buffer is shorter than the
// encoded bit-array length it declares.
var ErrTruncated = errors.New("bloom: truncated buffer")
