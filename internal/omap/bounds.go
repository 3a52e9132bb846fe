package omap

import "bytes"

// BoundKind selects whether a Bound is open, closed, or absent.
type BoundKind int

const (
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// Bound is one endpoint of a range scan.
type Bound struct {
	Kind BoundKind
	Key  []byte
}

// Lower/Upper constructors read naturally at call sites: omap.GTE(k),
// omap.LT(k), and so on.
func NoBound() Bound            { return Bound{Kind: Unbounded} }
func GTE(key []byte) Bound      { return Bound{Kind: Inclusive, Key: key} }
func GT(key []byte) Bound       { return Bound{Kind: Exclusive, Key: key} }
func LTE(key []byte) Bound      { return Bound{Kind: Inclusive, Key: key} }
func LT(key []byte) Bound       { return Bound{Kind: Exclusive, Key: key} }

func (b Bound) satisfiesLower(key []byte) bool {
	if b.Kind == Unbounded {
		return true
	}
	cmp := bytes.Compare(key, b.Key)
	if b.Kind == Inclusive {
		return cmp >= 0
	}
	return cmp > 0
}

func (b Bound) satisfiesUpper(key []byte) bool {
	if b.Kind == Unbounded {
		return true
	}
	cmp := bytes.Compare(key, b.Key)
	if b.Kind == Inclusive {
		return cmp <= 0
	}
	return cmp < 0
}
