package metapage

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuannm99/thunder/internal/pagefmt"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	m := New(4, pagefmt.DefaultPageSize)
	m.Root = 7
	m.Freelist = 3
	m.PageCount = 42
	m.CheckpointLSN = 100
	m.Checksum = m.computeChecksum()

	buf := m.ToBytes(pagefmt.DefaultPageSize)
	require.Len(t, buf, int(pagefmt.DefaultPageSize))

	got := FromBytes(buf)
	require.Equal(t, m, got)
	require.NoError(t, got.Validate())
}

func TestValidate_BadMagic(t *testing.T) {
	t.Parallel()

	m := New(0, pagefmt.DefaultPageSize)
	m.Magic = 0xBADBAD
	err := m.Validate()
	require.Error(t, err)
}

func TestValidate_TamperedByte(t *testing.T) {
	t.Parallel()

	m := New(1, pagefmt.DefaultPageSize)
	buf := m.ToBytes(pagefmt.DefaultPageSize)

	buf[10] ^= 0xFF
	tampered := FromBytes(buf)
	require.Error(t, tampered.Validate())
}

func TestValidateWithPageSize_Mismatch(t *testing.T) {
	t.Parallel()

	m := New(0, pagefmt.PageSize4K)
	err := m.ValidateWithPageSize(pagefmt.PageSize32K)
	require.Error(t, err)
	var mismatch *PageSizeMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestSelectCurrent_BothValid(t *testing.T) {
	t.Parallel()

	meta0 := New(2, pagefmt.DefaultPageSize)
	meta1 := New(3, pagefmt.DefaultPageSize)

	current, slot, ok := SelectCurrent(meta0, meta1)
	require.True(t, ok)
	require.Equal(t, 1, slot)
	require.Equal(t, uint64(3), current.TxID)
}

func TestSelectCurrent_OneInvalid(t *testing.T) {
	t.Parallel()

	meta0 := New(2, pagefmt.DefaultPageSize)
	var meta1 Meta // zero value fails magic check

	current, slot, ok := SelectCurrent(meta0, meta1)
	require.True(t, ok)
	require.Equal(t, 0, slot)
	require.Equal(t, uint64(2), current.TxID)
}

func TestSelectCurrent_BothInvalid(t *testing.T) {
	t.Parallel()

	var meta0, meta1 Meta
	_, _, ok := SelectCurrent(meta0, meta1)
	require.False(t, ok)
}

func TestFreshDatabaseMetaTxIDs(t *testing.T) {
	t.Parallel()

	meta0 := New(0, pagefmt.DefaultPageSize)
	meta1 := New(1, pagefmt.DefaultPageSize)

	current, slot, ok := SelectCurrent(meta0, meta1)
	require.True(t, ok)
	require.Equal(t, 1, slot)
	require.Equal(t, uint64(1), current.TxID)
}

func TestSlotForTxID(t *testing.T) {
	t.Parallel()

	require.Equal(t, pagefmt.MetaPageID0, SlotForTxID(0))
	require.Equal(t, pagefmt.MetaPageID1, SlotForTxID(1))
	require.Equal(t, pagefmt.MetaPageID0, SlotForTxID(2))
	require.Equal(t, pagefmt.MetaPageID1, SlotForTxID(3))
}
