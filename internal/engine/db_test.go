package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/thunder/internal/omap"
	"github.com/tuannm99/thunder/internal/pagefmt"
)

func testOptions(t *testing.T, path string) Options {
	t.Helper()
	opts := DefaultOptions(path)
	opts.PageSize = pagefmt.PageSize4K
	opts.OverflowThreshold = 64
	opts.WAL.Dir = path + ".wal"
	return opts
}

func TestOpenFreshCreatesEmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")

	db, err := OpenWithOptions(path, testOptions(t, path))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := db.ReadTx()
	require.Equal(t, 0, len(r.Iter()))
}

func TestReopenWithoutCommitIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")
	opts := testOptions(t, path)

	db, err := OpenWithOptions(path, opts)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := OpenWithOptions(path, opts)
	require.NoError(t, err)
	defer func() { _ = db2.Close() }()

	r := db2.ReadTx()
	require.Equal(t, 0, len(r.Iter()))
}

func TestCommitThenReadBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")

	db, err := OpenWithOptions(path, testOptions(t, path))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	w := db.WriteTx()
	require.NoError(t, w.Put([]byte("hello"), omap.InlineValue([]byte("world"))))
	require.NoError(t, db.Commit(w))

	r := db.ReadTx()
	v, ok := r.Get([]byte("hello"))
	require.True(t, ok)
	require.Equal(t, []byte("world"), v.Bytes)
}

func TestCommitSpillsLargeValueToOverflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")

	opts := testOptions(t, path)
	db, err := OpenWithOptions(path, opts)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	big := make([]byte, opts.OverflowThreshold*4)
	for i := range big {
		big[i] = byte(i)
	}

	w := db.WriteTx()
	require.NoError(t, w.Put([]byte("big"), omap.InlineValue(big)))
	require.NoError(t, db.Commit(w))

	r := db.ReadTx()
	v, ok := r.Get([]byte("big"))
	require.True(t, ok)
	require.Equal(t, big, v.Bytes)
}

func TestAbortDiscardsStagedWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")

	db, err := OpenWithOptions(path, testOptions(t, path))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	w := db.WriteTx()
	require.NoError(t, w.Put([]byte("k"), omap.InlineValue([]byte("v"))))
	db.Abort(w)

	r := db.ReadTx()
	_, ok := r.Get([]byte("k"))
	require.False(t, ok)

	// Writer lock must have been released by Abort.
	w2 := db.WriteTx()
	db.Abort(w2)
}

func TestReopenAfterCommitPreservesData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")
	opts := testOptions(t, path)

	db, err := OpenWithOptions(path, opts)
	require.NoError(t, err)

	w := db.WriteTx()
	require.NoError(t, w.Put([]byte("persist"), omap.InlineValue([]byte("me"))))
	require.NoError(t, db.Commit(w))
	require.NoError(t, db.Close())

	db2, err := OpenWithOptions(path, opts)
	require.NoError(t, err)
	defer func() { _ = db2.Close() }()

	r := db2.ReadTx()
	v, ok := r.Get([]byte("persist"))
	require.True(t, ok)
	require.Equal(t, []byte("me"), v.Bytes)
}

func TestMultipleCommitsAdvanceTxID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")

	db, err := OpenWithOptions(path, testOptions(t, path))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	startTxID := db.meta.TxID

	for i := 0; i < 5; i++ {
		w := db.WriteTx()
		require.NoError(t, w.Put([]byte{byte(i)}, omap.InlineValue([]byte{byte(i)})))
		require.NoError(t, db.Commit(w))
	}

	require.Equal(t, startTxID+5, db.meta.TxID)
	r := db.ReadTx()
	require.Equal(t, 5, len(r.Iter()))
}

func TestWALReplayReconstructsBucketCreateAfterCrash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")
	opts := testOptions(t, path)

	db, err := OpenWithOptions(path, opts)
	require.NoError(t, err)

	w := db.WriteTx()
	require.NoError(t, w.CreateBucket("a"))
	require.NoError(t, w.BucketPut("a", []byte("k"), omap.InlineValue([]byte("v"))))

	// Append the WAL records a real Commit would write, then walk away
	// before the remaining pipeline steps (data section, freelist, meta
	// swap) run — the crash window the bucket-create WAL record exists
	// to cover.
	txID := db.meta.TxID + 1
	require.NoError(t, db.appendWAL(txID, w))
	db.Abort(w)
	require.NoError(t, db.Close())

	db2, err := OpenWithOptions(path, opts)
	require.NoError(t, err)
	defer func() { _ = db2.Close() }()

	r := db2.ReadTx()
	require.True(t, r.BucketExists("a"))
	v, ok, err := r.BucketGet("a", []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v.Bytes)
}

func TestCheckpointKeepsCommittedData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")

	db, err := OpenWithOptions(path, testOptions(t, path))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	w := db.WriteTx()
	require.NoError(t, w.Put([]byte("a"), omap.InlineValue([]byte("b"))))
	require.NoError(t, db.Commit(w))

	require.NoError(t, db.Checkpoint())

	r := db.ReadTx()
	v, ok := r.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("b"), v.Bytes)
}

func TestDeleteRemovesKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.db")

	db, err := OpenWithOptions(path, testOptions(t, path))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	w := db.WriteTx()
	require.NoError(t, w.Put([]byte("gone"), omap.InlineValue([]byte("soon"))))
	require.NoError(t, db.Commit(w))

	w2 := db.WriteTx()
	require.NoError(t, w2.Delete([]byte("gone")))
	require.NoError(t, db.Commit(w2))

	r := db.ReadTx()
	_, ok := r.Get([]byte("gone"))
	require.False(t, ok)
}
