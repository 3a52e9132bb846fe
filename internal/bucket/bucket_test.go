package bucket

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuannm99/thunder/internal/omap"
)

func TestCreateExistsDelete(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	require.False(t, Exists(tree, "users"))

	require.NoError(t, Create(tree, "users"))
	require.True(t, Exists(tree, "users"))

	require.ErrorIs(t, Create(tree, "users"), ErrBucketAlreadyExists)

	require.NoError(t, Delete(tree, "users", false))
	require.False(t, Exists(tree, "users"))

	require.ErrorIs(t, Delete(tree, "users", false), ErrBucketNotFound)
}

func TestDeleteWithoutCascadeRefusesNonEmptyBucket(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	require.NoError(t, Create(tree, "users"))
	require.NoError(t, Put(tree, "users", []byte("alice"), omap.InlineValue([]byte("1"))))

	require.ErrorIs(t, Delete(tree, "users", false), ErrBucketNotEmpty)
	require.True(t, Exists(tree, "users"), "refused delete must leave the bucket intact")

	v, ok, err := Get(tree, "users", []byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v.Bytes)
}

func TestPutGetDeleteKey(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	require.NoError(t, Create(tree, "users"))

	err := Put(tree, "users", []byte("alice"), omap.InlineValue([]byte("1")))
	require.NoError(t, err)

	v, ok, err := Get(tree, "users", []byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v.Bytes)

	require.NoError(t, DeleteKey(tree, "users", []byte("alice")))
	_, ok, err = Get(tree, "users", []byte("alice"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutOnMissingBucket(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	err := Put(tree, "ghost", []byte("k"), omap.InlineValue([]byte("v")))
	require.ErrorIs(t, err, ErrBucketNotFound)
}

func TestBucketIsolation(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	require.NoError(t, Create(tree, "a"))
	require.NoError(t, Create(tree, "b"))

	require.NoError(t, Put(tree, "a", []byte("k"), omap.InlineValue([]byte("from-a"))))
	require.NoError(t, Put(tree, "b", []byte("k"), omap.InlineValue([]byte("from-b"))))

	va, _, _ := Get(tree, "a", []byte("k"))
	vb, _, _ := Get(tree, "b", []byte("k"))
	require.Equal(t, []byte("from-a"), va.Bytes)
	require.Equal(t, []byte("from-b"), vb.Bytes)
}

func TestDeleteRemovesAllKeysInBucket(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	require.NoError(t, Create(tree, "a"))
	require.NoError(t, Create(tree, "ab")) // prefix-adjacent name, must not collide

	require.NoError(t, Put(tree, "a", []byte("1"), omap.InlineValue([]byte("x"))))
	require.NoError(t, Put(tree, "a", []byte("2"), omap.InlineValue([]byte("y"))))
	require.NoError(t, Put(tree, "ab", []byte("1"), omap.InlineValue([]byte("z"))))

	require.NoError(t, Delete(tree, "a", true))

	_, ok, _ := Get(tree, "ab", []byte("1"))
	require.True(t, ok, "sibling bucket must survive deletion of a different bucket")
}

func TestRangeScanStripsPrefixAndRespectsBounds(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	require.NoError(t, Create(tree, "users"))
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, Put(tree, "users", []byte(k), omap.InlineValue([]byte(k))))
	}

	entries, err := Range(tree, "users", omap.GTE([]byte("b")), omap.LTE([]byte("c")))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, []byte("b"), entries[0].Key)
	require.Equal(t, []byte("c"), entries[1].Key)

	all, err := Range(tree, "users", omap.NoBound(), omap.NoBound())
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestListBuckets(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	require.NoError(t, Create(tree, "alpha"))
	require.NoError(t, Create(tree, "beta"))
	require.NoError(t, Create(tree, "gamma"))

	names := List(tree)
	require.Equal(t, []string{"alpha", "beta", "gamma"}, names)
}

func TestInvalidBucketName(t *testing.T) {
	t.Parallel()

	tree := omap.New()
	require.ErrorIs(t, Create(tree, ""), ErrInvalidBucketName)
}
