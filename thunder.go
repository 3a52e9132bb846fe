// Package thunder is an embedded, single-file, transactional key-value
// storage engine: a dual meta-page commit protocol, a write-ahead log
// with group commit, chained overflow pages for large values, and a
// namespaced bucket layer over one in-memory ordered map. It wraps
// internal/engine's Database with a plain []byte surface so that
// importers outside this module never need to reach into an internal
// package to build a value.
package thunder

import (
	"github.com/tuannm99/thunder/internal/bucket"
	"github.com/tuannm99/thunder/internal/engine"
	"github.com/tuannm99/thunder/internal/omap"
	"github.com/tuannm99/thunder/internal/txn"
)

// Database is a single open Thunder file.
type Database struct {
	inner *engine.Database
}

// Open opens (creating if necessary) the database file at path with
// Thunder's default options.
func Open(path string) (*Database, error) {
	return OpenWithOptions(path, DefaultOptions(path))
}

// OpenWithOptions opens path with explicit Options.
func OpenWithOptions(path string, opts Options) (*Database, error) {
	d, err := engine.OpenWithOptions(path, opts)
	if err != nil {
		return nil, err
	}
	return &Database{inner: d}, nil
}

// Close flushes and closes every resource the database owns.
func (db *Database) Close() error { return db.inner.Close() }

// Checkpoint folds the WAL tail into the live meta and truncates
// segments older than it.
func (db *Database) Checkpoint() error { return db.inner.Checkpoint() }

// ReadTx opens a read-only snapshot of the live map.
func (db *Database) ReadTx() *ReadTx {
	return &ReadTx{inner: db.inner.ReadTx()}
}

// WriteTx opens the single active write transaction, blocking until any
// other write transaction has committed or aborted. The caller must
// follow with exactly one of Commit or Abort.
func (db *Database) WriteTx() *WriteTx {
	return &WriteTx{inner: db.inner.WriteTx()}
}

// Commit runs the commit pipeline for w and releases the writer lock.
func (db *Database) Commit(w *WriteTx) error { return db.inner.Commit(w.inner) }

// Abort releases the writer lock held since WriteTx without applying
// any staged change in w.
func (db *Database) Abort(w *WriteTx) { db.inner.Abort(w.inner) }

// Entry pairs a key with its value, returned by range scans.
type Entry struct {
	Key   []byte
	Value []byte
}

// Bound selects one endpoint of a range scan.
type Bound = omap.Bound

// NoBound, GTE, GT, LTE, and LT build Bound values for Range and
// BucketRange calls.
var (
	NoBound = omap.NoBound
	GTE     = omap.GTE
	GT      = omap.GT
	LTE     = omap.LTE
	LT      = omap.LT
)

// Sentinel errors a caller can compare against with errors.Is.
var (
	ErrDatabaseClosed      = engine.ErrDatabaseClosed
	ErrTxClosed            = txn.ErrTxClosed
	ErrBucketNotFound      = bucket.ErrBucketNotFound
	ErrBucketAlreadyExists = bucket.ErrBucketAlreadyExists
	ErrInvalidBucketName   = bucket.ErrInvalidBucketName
	ErrBucketNotEmpty      = bucket.ErrBucketNotEmpty
)

// Error is the engine's contextual error type, carrying a Kind plus the
// fields needed to diagnose it.
type Error = engine.Error

// ErrorKind classifies an Error the way the engine's error taxonomy
// names failures, so callers can branch on category rather than
// message text.
type ErrorKind = engine.Kind

// ReadTx is a read-only snapshot transaction over the live map.
type ReadTx struct {
	inner *txn.ReadTx
}

// Get looks up key, consulting the bloom filter first to short-circuit
// a miss.
func (r *ReadTx) Get(key []byte) ([]byte, bool) {
	v, ok := r.inner.Get(key)
	return v.Bytes, ok
}

// Range returns every key/value pair in [lower, upper) order, honoring
// each Bound's inclusivity.
func (r *ReadTx) Range(lower, upper Bound) []Entry {
	return toEntries(r.inner.Range(lower, upper))
}

// Iter returns every key/value pair in ascending key order.
func (r *ReadTx) Iter() []Entry {
	return toEntries(r.inner.Iter())
}

// BucketExists reports whether bucketName is currently registered.
func (r *ReadTx) BucketExists(bucketName string) bool {
	return r.inner.BucketExists(bucketName)
}

// ListBuckets returns every registered bucket name.
func (r *ReadTx) ListBuckets() []string {
	return r.inner.ListBuckets()
}

// BucketGet looks up userKey within bucketName.
func (r *ReadTx) BucketGet(bucketName string, userKey []byte) ([]byte, bool, error) {
	v, ok, err := r.inner.BucketGet(bucketName, userKey)
	return v.Bytes, ok, err
}

// BucketRange scans bucketName's keys in [lower, upper) order.
func (r *ReadTx) BucketRange(bucketName string, lower, upper Bound) ([]Entry, error) {
	entries, err := r.inner.BucketRange(bucketName, lower, upper)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Key: e.Key, Value: e.Value.Bytes}
	}
	return out, nil
}

// WriteTx is the single active write transaction: every mutation stages
// into a pending map until Database.Commit applies it.
type WriteTx struct {
	inner *txn.WriteTx
}

// State reports whether w is still Active, mid-Commit, Committed, or
// Aborted.
func (w *WriteTx) State() txn.State { return w.inner.State() }

// Put stages key=val, overwriting any prior staged value or deletion
// for key.
func (w *WriteTx) Put(key, val []byte) error {
	return w.inner.Put(key, omap.InlineValue(val))
}

// Delete stages the removal of key.
func (w *WriteTx) Delete(key []byte) error { return w.inner.Delete(key) }

// Get reads w's own staged view: a pending put, a pending deletion, or
// the base snapshot, in that order.
func (w *WriteTx) Get(key []byte) ([]byte, bool) {
	v, ok := w.inner.Get(key)
	return v.Bytes, ok
}

// BatchPut stages every key/value pair in kvs.
func (w *WriteTx) BatchPut(kvs []Entry) error {
	entries := make([]omap.Entry, len(kvs))
	for i, kv := range kvs {
		entries[i] = omap.Entry{Key: kv.Key, Value: omap.InlineValue(kv.Value)}
	}
	return w.inner.BatchPut(entries)
}

// CreateBucket stages the creation of a new, empty bucket.
func (w *WriteTx) CreateBucket(bucketName string) error { return w.inner.CreateBucket(bucketName) }

// DeleteBucket stages bucketName's removal. If cascade is false and the
// bucket still holds any key, it returns ErrBucketNotEmpty instead of
// staging the removal.
func (w *WriteTx) DeleteBucket(bucketName string, cascade bool) error {
	return w.inner.DeleteBucket(bucketName, cascade)
}

// BucketPut stages userKey=val within bucketName.
func (w *WriteTx) BucketPut(bucketName string, userKey, val []byte) error {
	return w.inner.BucketPut(bucketName, userKey, omap.InlineValue(val))
}

// BucketGet reads w's own staged view of userKey within bucketName.
func (w *WriteTx) BucketGet(bucketName string, userKey []byte) ([]byte, bool, error) {
	v, ok, err := w.inner.BucketGet(bucketName, userKey)
	return v.Bytes, ok, err
}

// BucketDelete stages the removal of userKey within bucketName.
func (w *WriteTx) BucketDelete(bucketName string, userKey []byte) error {
	return w.inner.BucketDelete(bucketName, userKey)
}

func toEntries(entries []omap.Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Key: e.Key, Value: e.Value.Bytes}
	}
	return out
}
