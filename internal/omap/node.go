package omap

import (
	"bytes"
	"sort"
)

// node is a single B+ tree node. Leaves carry vals (one per key); internal
// nodes carry children (one more than the number of separator keys).
type node struct {
	leaf     bool
	keys     [][]byte
	vals     []Value
	children []*node
}

func newLeaf() *node {
	return &node{leaf: true}
}

func newInternal(keys [][]byte, children []*node) *node {
	return &node{leaf: false, keys: keys, children: children}
}

// leafSearch returns the index of key in keys, or the insertion point if
// absent (the smallest index whose key is >= the target).
func leafSearch(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(keys[i], key) >= 0
	})
}

// childIndex returns which child of an internal node's keys a lookup for
// key should descend into: children[i] holds keys < keys[i] for i == 0,
// keys in [keys[i-1], keys[i]) for 0 < i < len(keys), and keys >=
// keys[len(keys)-1] for i == len(keys).
func childIndex(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(key, keys[i]) < 0
	})
}

func insertBytesAt(s [][]byte, idx int, v []byte) [][]byte {
	s = append(s, nil)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertValAt(s []Value, idx int, v Value) []Value {
	s = append(s, Value{})
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertNodeAt(s []*node, idx int, v *node) []*node {
	s = append(s, nil)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func removeBytesAt(s [][]byte, idx int) [][]byte {
	return append(s[:idx], s[idx+1:]...)
}

func removeValAt(s []Value, idx int) []Value {
	return append(s[:idx], s[idx+1:]...)
}

func removeNodeAt(s []*node, idx int) []*node {
	return append(s[:idx], s[idx+1:]...)
}

// isUnderflow reports whether n, as a non-root node, has fallen below
// MinEntries occupancy.
func isUnderflow(n *node) bool {
	if n.leaf {
		return len(n.keys) < MinEntries
	}
	return len(n.children) < MinEntries
}

// canLend reports whether n can give up one entry to a sibling and stay
// at or above MinEntries.
func canLend(n *node) bool {
	if n.leaf {
		return len(n.keys) > MinEntries
	}
	return len(n.children) > MinEntries
}
