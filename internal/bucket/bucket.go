// Package bucket encodes bucket namespaces as key prefixes over the flat
// ordered map: there is no separate tree per bucket, only a prefix
// convention applied to the single global omap.Tree.
package bucket

import "github.com/tuannm99/thunder/internal/omap"

const (
	// PrefixMetadata marks keys that belong to Thunder's own bookkeeping
	// (the bucket registry), never returned from a user-facing scan.
	PrefixMetadata byte = 0x00
	// PrefixData marks ordinary bucket key/value entries.
	PrefixData byte = 0x01
)

// registryKeyPrefix is the fixed metadata key under which the set of
// known bucket names lives, one entry per bucket.
var registryKeyPrefix = []byte{PrefixMetadata, 'b'}

// MaxNameLen bounds a bucket name's length so the one-byte name_len field
// in EncodeKey never overflows.
const MaxNameLen = 255

// EncodeKey builds the physical omap key for (bucket, userKey):
// prefix(1) || name_len(1) || name || user_key.
func EncodeKey(bucketName string, userKey []byte) []byte {
	out := make([]byte, 0, 2+len(bucketName)+len(userKey))
	out = append(out, PrefixData, byte(len(bucketName)))
	out = append(out, bucketName...)
	out = append(out, userKey...)
	return out
}

// prefixOnly returns the physical key prefix shared by every entry in
// bucketName, used as the bounds for a range scan.
func prefixOnly(bucketName string) []byte {
	out := make([]byte, 0, 2+len(bucketName))
	out = append(out, PrefixData, byte(len(bucketName)))
	out = append(out, bucketName...)
	return out
}

// registryKey is the metadata key recording that bucketName exists.
func registryKey(bucketName string) []byte {
	out := append([]byte{}, registryKeyPrefix...)
	out = append(out, bucketName...)
	return out
}

// prefixUpperBound returns the exclusive upper bound of the key range
// covered by prefix: the smallest key that is not itself a continuation
// of prefix. It assumes prefix does not consist entirely of 0xFF bytes,
// which name_len guarantees is never the case here since byte 0 is
// always PrefixData/PrefixMetadata.
func prefixUpperBound(prefix []byte) []byte {
	out := append([]byte{}, prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil // unreachable given the prefixes we construct
}

// ValidateName rejects empty names and names too long to encode.
func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrInvalidBucketName
	}
	if len(name) > MaxNameLen {
		return ErrInvalidBucketName
	}
	return nil
}

// Create registers bucketName in the metadata namespace. Returns
// ErrBucketAlreadyExists if it is already registered.
func Create(tree *omap.Tree, bucketName string) error {
	if err := ValidateName(bucketName); err != nil {
		return err
	}
	rk := registryKey(bucketName)
	if _, ok := tree.Get(rk); ok {
		return ErrBucketAlreadyExists
	}
	tree.Insert(rk, omap.InlineValue([]byte{1}))
	return nil
}

// Exists reports whether bucketName has been created.
func Exists(tree *omap.Tree, bucketName string) bool {
	_, ok := tree.Get(registryKey(bucketName))
	return ok
}

// Delete removes bucketName's registry entry and every data key under its
// prefix. Returns ErrBucketNotFound if the bucket does not exist, and
// ErrBucketNotEmpty if it still holds data keys and cascade is false.
func Delete(tree *omap.Tree, bucketName string, cascade bool) error {
	if !Exists(tree, bucketName) {
		return ErrBucketNotFound
	}

	prefix := prefixOnly(bucketName)
	upper := prefixUpperBound(prefix)
	lower := omap.GTE(prefix)
	var upperBound omap.Bound
	if upper == nil {
		upperBound = omap.NoBound()
	} else {
		upperBound = omap.LT(upper)
	}
	entries := tree.Range(lower, upperBound)
	if len(entries) > 0 && !cascade {
		return ErrBucketNotEmpty
	}

	tree.Remove(registryKey(bucketName))
	for _, e := range entries {
		tree.Remove(e.Key)
	}
	return nil
}

// Put writes userKey=val in bucketName. Returns ErrBucketNotFound if the
// bucket has not been created.
func Put(tree *omap.Tree, bucketName string, userKey []byte, val omap.Value) error {
	if !Exists(tree, bucketName) {
		return ErrBucketNotFound
	}
	tree.Insert(EncodeKey(bucketName, userKey), val)
	return nil
}

// Get reads userKey from bucketName.
func Get(tree *omap.Tree, bucketName string, userKey []byte) (omap.Value, bool, error) {
	if !Exists(tree, bucketName) {
		return omap.Value{}, false, ErrBucketNotFound
	}
	v, ok := tree.Get(EncodeKey(bucketName, userKey))
	return v, ok, nil
}

// DeleteKey removes userKey from bucketName.
func DeleteKey(tree *omap.Tree, bucketName string, userKey []byte) error {
	if !Exists(tree, bucketName) {
		return ErrBucketNotFound
	}
	tree.Remove(EncodeKey(bucketName, userKey))
	return nil
}

// Entry is a single (key, value) pair returned from a bucket scan, with
// userKey already stripped of its bucket-prefix encoding.
type Entry struct {
	Key   []byte
	Value omap.Value
}

// Range scans bucketName's entries whose user keys fall within
// [lower, upper) honoring lower/upper's open/closed/unbounded kinds, and
// strips the physical prefix back off each returned key.
func Range(tree *omap.Tree, bucketName string, lower, upper omap.Bound) ([]Entry, error) {
	if !Exists(tree, bucketName) {
		return nil, ErrBucketNotFound
	}
	prefix := prefixOnly(bucketName)

	physLower := encodeBound(prefix, lower, prefix)
	var physUpperKey []byte
	if upper.Kind == omap.Unbounded {
		physUpperKey = prefixUpperBound(prefix)
	} else {
		physUpperKey = append(append([]byte{}, prefix...), upper.Key...)
	}

	var physUpper omap.Bound
	if upper.Kind == omap.Unbounded {
		if physUpperKey == nil {
			physUpper = omap.NoBound()
		} else {
			physUpper = omap.LT(physUpperKey)
		}
	} else {
		physUpper = omap.Bound{Kind: upper.Kind, Key: physUpperKey}
	}

	raw := tree.Range(physLower, physUpper)
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		out = append(out, Entry{Key: append([]byte{}, e.Key[len(prefix):]...), Value: e.Value})
	}
	return out, nil
}

func encodeBound(prefix []byte, b omap.Bound, fallback []byte) omap.Bound {
	if b.Kind == omap.Unbounded {
		return omap.GTE(fallback)
	}
	key := append(append([]byte{}, prefix...), b.Key...)
	return omap.Bound{Kind: b.Kind, Key: key}
}

// List returns every registered bucket name in lexical order.
func List(tree *omap.Tree) []string {
	entries := tree.Range(omap.GTE(registryKeyPrefix), omap.LT(prefixUpperBound(registryKeyPrefix)))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, string(e.Key[len(registryKeyPrefix):]))
	}
	return names
}
