package freelist

import "errors"

// ErrTruncated is returned by Decode when buf is too short to hold the
// length-prefixed page ID list it claims to encode.
var ErrTruncated = errors.New("freelist: truncated encoding")
