package omap

// MaxEntries is the fixed node capacity for both leaf and internal
// nodes: a leaf holds at most MaxEntries keys, an internal node holds at
// most MaxEntries children.
const MaxEntries = 32

// MinEntries is the minimum occupancy a non-root node must keep after a
// remove; falling below it triggers borrow-from-sibling or merge.
const MinEntries = MaxEntries / 2
