package omap

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func key(n int) []byte { return []byte(fmt.Sprintf("key-%06d", n)) }

func TestGetInsertBasic(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Insert([]byte("hello"), InlineValue([]byte("world")))
	tr.Insert([]byte("foo"), InlineValue([]byte("bar")))

	v, ok := tr.Get([]byte("hello"))
	require.True(t, ok)
	require.Equal(t, []byte("world"), v.Bytes)

	v, ok = tr.Get([]byte("foo"))
	require.True(t, ok)
	require.Equal(t, []byte("bar"), v.Bytes)

	_, ok = tr.Get([]byte("nope"))
	require.False(t, ok)
}

func TestInsertOverwrite(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Insert([]byte("k"), InlineValue([]byte("v1")))
	tr.Insert([]byte("k"), InlineValue([]byte("v2")))
	require.Equal(t, 1, tr.Len())

	v, ok := tr.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v2"), v.Bytes)
}

func TestSplitAndOrder(t *testing.T) {
	t.Parallel()

	tr := New()
	const n = 5000
	perm := rand.New(rand.NewSource(1)).Perm(n)
	for _, i := range perm {
		tr.Insert(key(i), InlineValue([]byte(fmt.Sprintf("v%d", i))))
	}
	require.Equal(t, n, tr.Len())

	for i := 0; i < n; i++ {
		v, ok := tr.Get(key(i))
		require.True(t, ok, "missing key %d", i)
		require.Equal(t, fmt.Sprintf("v%d", i), string(v.Bytes))
	}

	all := tr.All()
	require.Len(t, all, n)
	for i := 1; i < len(all); i++ {
		require.Less(t, string(all[i-1].Key), string(all[i].Key))
	}
}

func TestRemoveWithMergesAndBorrows(t *testing.T) {
	t.Parallel()

	tr := New()
	const n = 3000
	for i := 0; i < n; i++ {
		tr.Insert(key(i), InlineValue([]byte("v")))
	}

	r := rand.New(rand.NewSource(2))
	order := r.Perm(n)
	removed := map[int]bool{}
	for _, i := range order[:n/2] {
		require.True(t, tr.Remove(key(i)))
		removed[i] = true
	}

	require.Equal(t, n-n/2, tr.Len())
	for i := 0; i < n; i++ {
		_, ok := tr.Get(key(i))
		require.Equal(t, !removed[i], ok, "key %d", i)
	}

	all := tr.All()
	for i := 1; i < len(all); i++ {
		require.Less(t, string(all[i-1].Key), string(all[i].Key))
	}
}

func TestRemoveMissingKey(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Insert([]byte("a"), InlineValue([]byte("1")))
	require.False(t, tr.Remove([]byte("missing")))
	require.Equal(t, 1, tr.Len())
}

func TestRemoveAllShrinksToEmptyLeaf(t *testing.T) {
	t.Parallel()

	tr := New()
	const n = 200
	for i := 0; i < n; i++ {
		tr.Insert(key(i), InlineValue([]byte("v")))
	}
	for i := 0; i < n; i++ {
		require.True(t, tr.Remove(key(i)))
	}
	require.Equal(t, 0, tr.Len())
	require.Empty(t, tr.All())
}

func TestRangeBoundsInclusiveExclusiveUnbounded(t *testing.T) {
	t.Parallel()

	tr := New()
	for i := 0; i < 100; i++ {
		tr.Insert(key(i), InlineValue([]byte("v")))
	}

	// [key(10), key(20)]
	got := tr.Range(GTE(key(10)), LTE(key(20)))
	require.Len(t, got, 11)
	require.Equal(t, key(10), got[0].Key)
	require.Equal(t, key(20), got[len(got)-1].Key)

	// (key(10), key(20))
	got = tr.Range(GT(key(10)), LT(key(20)))
	require.Len(t, got, 9)
	require.Equal(t, key(11), got[0].Key)
	require.Equal(t, key(19), got[len(got)-1].Key)

	// unbounded both sides == All
	got = tr.Range(NoBound(), NoBound())
	require.Len(t, got, 100)

	// unbounded lower, bounded upper
	got = tr.Range(NoBound(), LT(key(3)))
	require.Len(t, got, 3)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	tr := New()
	for i := 0; i < 500; i++ {
		tr.Insert(key(i), InlineValue([]byte("orig")))
	}

	clone := tr.Clone()
	clone.Insert(key(0), InlineValue([]byte("mutated")))
	clone.Remove(key(1))
	for i := 0; i < 500; i++ {
		clone.Insert(key(1000+i), InlineValue([]byte("new")))
	}

	v, ok := tr.Get(key(0))
	require.True(t, ok)
	require.Equal(t, []byte("orig"), v.Bytes, "original tree must not observe clone's mutation")

	_, ok = tr.Get(key(1))
	require.True(t, ok, "original tree must not observe clone's removal")

	require.Equal(t, 500, tr.Len())
	require.Equal(t, 999, clone.Len())
}

func TestStrictLexicographicOrder(t *testing.T) {
	t.Parallel()

	tr := New()
	keys := [][]byte{[]byte("b"), []byte("a"), []byte("c"), []byte("aa"), []byte("ab")}
	for _, k := range keys {
		tr.Insert(k, InlineValue([]byte("v")))
	}
	all := tr.All()
	want := []string{"a", "aa", "ab", "b", "c"}
	for i, e := range all {
		require.Equal(t, want[i], string(e.Key))
	}
}
