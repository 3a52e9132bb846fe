package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/thunder/internal/omap"
)

func TestEncodeDecodeDataSectionRoundTrip(t *testing.T) {
	entries := []omap.Entry{
		{Key: []byte("alpha"), Value: omap.InlineValue([]byte("1"))},
		{Key: []byte("beta"), Value: omap.InlineValue([]byte("two"))},
		{Key: []byte("gamma"), Value: omap.InlineValue([]byte(""))},
	}

	buf := encodeDataSection(entries)
	tree, err := decodeDataSection(buf)
	require.NoError(t, err)
	require.Equal(t, len(entries), tree.Len())

	for _, e := range entries {
		v, ok := tree.Get(e.Key)
		require.True(t, ok)
		require.False(t, v.Overflow)
		require.Equal(t, e.Value.Bytes, v.Bytes)
	}
}

func TestDecodeDataSectionEmpty(t *testing.T) {
	tree, err := decodeDataSection(nil)
	require.NoError(t, err)
	require.Equal(t, 0, tree.Len())
}

func TestDecodeDataSectionTruncated(t *testing.T) {
	buf := encodeDataSection([]omap.Entry{
		{Key: []byte("k"), Value: omap.InlineValue([]byte("v"))},
	})

	_, err := decodeDataSection(buf[:len(buf)-1])
	require.Error(t, err)
}

func TestDataSectionLenMatchesEncodedInlineLength(t *testing.T) {
	entries := []omap.Entry{
		{Key: []byte("k1"), Value: omap.InlineValue([]byte("short"))},
		{Key: []byte("k2"), Value: omap.InlineValue(make([]byte, 64))},
	}

	threshold := 1 << 20 // large enough that nothing overflows
	got := dataSectionLen(entries, threshold)
	want := len(encodeDataSection(entries))
	require.Equal(t, want, got)
}

func TestDataSectionLenAccountsForOverflowFields(t *testing.T) {
	entries := []omap.Entry{
		{Key: []byte("k"), Value: omap.InlineValue(make([]byte, 100))},
	}
	threshold := 10 // forces the value to overflow

	got := dataSectionLen(entries, threshold)
	// header(8) + keylen(4) + key(1) + valuelen(4) + ref(12)
	require.Equal(t, 8+4+1+4+12, got)
}
