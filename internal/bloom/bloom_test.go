package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertMayContain(t *testing.T) {
	t.Parallel()

	f := New(1000, 0.01)
	present := make([][]byte, 0, 500)
	for i := 0; i < 500; i++ {
		k := []byte(fmt.Sprintf("present-%d", i))
		f.Insert(k)
		present = append(present, k)
	}

	for _, k := range present {
		require.True(t, f.MayContain(k))
	}
}

func TestFalsePositiveRateIsReasonable(t *testing.T) {
	t.Parallel()

	f := New(2000, 0.01)
	for i := 0; i < 2000; i++ {
		f.Insert([]byte(fmt.Sprintf("item-%d", i)))
	}

	falsePositives := 0
	const trials = 5000
	for i := 0; i < trials; i++ {
		k := []byte(fmt.Sprintf("absent-%d", i))
		if f.MayContain(k) {
			falsePositives++
		}
	}

	// Generous slack over the 1% target to avoid test flakiness.
	require.Less(t, falsePositives, trials/10)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	f := New(100, 0.01)
	f.Insert([]byte("alpha"))
	f.Insert([]byte("beta"))

	buf := f.Encode()
	f2, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, f.NumBits(), f2.NumBits())
	require.Equal(t, f.NumHashes(), f2.NumHashes())
	require.True(t, f2.MayContain([]byte("alpha")))
	require.True(t, f2.MayContain([]byte("beta")))
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestNewWithBitsPerKey(t *testing.T) {
	t.Parallel()

	f := NewWithBitsPerKey(100, BitsPerKey)
	require.Equal(t, uint64(1000), f.NumBits())
	f.Insert([]byte("x"))
	require.True(t, f.MayContain([]byte("x")))
}
