// Package txn implements the read and write transaction objects:
// ReadTx is an immutable borrow of the live map at the moment it was
// opened; WriteTx stages mutations in a pending map and a deletion set
// and never touches the live map until the engine's commit pipeline
// applies it. The state machine and staging containers follow the same
// sentinel-error and error-wrapping idiom as internal/engine/db.go.
package txn

import (
	"sort"

	"github.com/tuannm99/thunder/internal/bloom"
	"github.com/tuannm99/thunder/internal/bucket"
	"github.com/tuannm99/thunder/internal/omap"
)

// State is a WriteTx's position in its Active -> Committing ->
// Committed|Aborted state machine.
type State int

const (
	StateActive State = iota
	StateCommitting
	StateCommitted
	StateAborted
)

// ReadTx is a read-only snapshot of the live map, valid for as long as
// the caller holds it; it never observes a concurrently staged write.
type ReadTx struct {
	tree   *omap.Tree
	filter *bloom.Filter
}

// NewReadTx wraps the tree/bloom snapshot observed at open time.
func NewReadTx(tree *omap.Tree, filter *bloom.Filter) *ReadTx {
	return &ReadTx{tree: tree, filter: filter}
}

// Get returns a clone of the value stored at key in the default
// (unbucketed) namespace.
func (r *ReadTx) Get(key []byte) (omap.Value, bool) {
	if r.filter != nil && !r.filter.MayContain(key) {
		return omap.Value{}, false
	}
	v, ok := r.tree.Get(key)
	if ok {
		v.Bytes = append([]byte(nil), v.Bytes...)
	}
	return v, ok
}

// GetRef is identical to Get, copy included: Go has no borrow-checked
// reference type that could tie the stored bytes to this transaction.
func (r *ReadTx) GetRef(key []byte) (omap.Value, bool) { return r.Get(key) }

// Range scans the default namespace within [lower, upper) per bound kind.
func (r *ReadTx) Range(lower, upper omap.Bound) []omap.Entry {
	return r.tree.Range(lower, upper)
}

// Iter returns every entry in the default namespace in ascending order.
func (r *ReadTx) Iter() []omap.Entry {
	return r.tree.All()
}

// BucketExists reports whether bucketName has been created.
func (r *ReadTx) BucketExists(bucketName string) bool {
	return bucket.Exists(r.tree, bucketName)
}

// ListBuckets returns every registered bucket name in lexical order.
func (r *ReadTx) ListBuckets() []string {
	return bucket.List(r.tree)
}

// BucketGet reads userKey from bucketName.
func (r *ReadTx) BucketGet(bucketName string, userKey []byte) (omap.Value, bool, error) {
	return bucket.Get(r.tree, bucketName, userKey)
}

// BucketRange scans bucketName's entries within [lower, upper).
func (r *ReadTx) BucketRange(bucketName string, lower, upper omap.Bound) ([]bucket.Entry, error) {
	return bucket.Range(r.tree, bucketName, lower, upper)
}

// mutationKind distinguishes a staged put from a staged delete when the
// mutations are replayed in commit order for WAL encoding.
type mutationKind int

const (
	mutationPut mutationKind = iota
	mutationDelete
)

// stagedKey identifies a mutation's target: an optional bucket name plus
// the user-visible key within it (or the default namespace if empty).
type stagedKey struct {
	bucketName string
	key        string
}

// WriteTx stages puts and deletes against a private overlay and never
// mutates the tree it was opened against; Commit (driven by the owning
// engine) clones that tree and applies the overlay to the clone.
type WriteTx struct {
	base  *omap.Tree
	state State

	pending map[stagedKey]omap.Value
	deleted map[stagedKey]struct{}
	// order preserves staging order for WAL replay, matching how a
	// real transaction log would record operations as they happened.
	order []stagedKey

	bucketCreates []string
	bucketDeletes []BucketDelete
}

// BucketDelete is a staged bucket removal along with whether it is
// permitted to cascade over a non-empty bucket.
type BucketDelete struct {
	Name    string
	Cascade bool
}

// NewWriteTx opens a write transaction against base. base is never
// mutated by the returned WriteTx.
func NewWriteTx(base *omap.Tree) *WriteTx {
	return &WriteTx{
		base:    base,
		state:   StateActive,
		pending: make(map[stagedKey]omap.Value),
		deleted: make(map[stagedKey]struct{}),
	}
}

// State returns the transaction's current lifecycle state.
func (w *WriteTx) State() State { return w.state }

// Put stages key=val in the default namespace. Staging a put for a key
// previously staged as a delete clears the delete (pipeline step 1 is
// satisfied automatically since the two sets are kept mutually
// exclusive at all times).
func (w *WriteTx) Put(key []byte, val omap.Value) error {
	if w.state != StateActive {
		return ErrTxClosed
	}
	sk := stagedKey{key: string(key)}
	w.stage(sk, val)
	return nil
}

// Delete stages key's removal from the default namespace.
func (w *WriteTx) Delete(key []byte) error {
	if w.state != StateActive {
		return ErrTxClosed
	}
	sk := stagedKey{key: string(key)}
	w.stageDelete(sk)
	return nil
}

// Get reads key, preferring the pending overlay over the base snapshot
// so a write transaction observes its own uncommitted writes.
func (w *WriteTx) Get(key []byte) (omap.Value, bool) {
	sk := stagedKey{key: string(key)}
	if _, gone := w.deleted[sk]; gone {
		return omap.Value{}, false
	}
	if v, ok := w.pending[sk]; ok {
		return v, true
	}
	return w.base.Get(key)
}

// BatchPut stages every entry in kvs as a Put.
func (w *WriteTx) BatchPut(kvs []omap.Entry) error {
	for _, e := range kvs {
		if err := w.Put(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// CreateBucket stages a new bucket registration.
func (w *WriteTx) CreateBucket(bucketName string) error {
	if w.state != StateActive {
		return ErrTxClosed
	}
	if err := bucket.ValidateName(bucketName); err != nil {
		return err
	}
	if bucket.Exists(w.base, bucketName) {
		return bucket.ErrBucketAlreadyExists
	}
	w.bucketCreates = append(w.bucketCreates, bucketName)
	return nil
}

// DeleteBucket stages bucketName's removal along with every staged write
// already queued under it. If cascade is false and the bucket (after
// this transaction's own staged writes) still holds data keys, it
// returns bucket.ErrBucketNotEmpty rather than staging the removal.
func (w *WriteTx) DeleteBucket(bucketName string, cascade bool) error {
	if w.state != StateActive {
		return ErrTxClosed
	}
	if !bucket.Exists(w.base, bucketName) {
		return bucket.ErrBucketNotFound
	}
	if !cascade && w.bucketHasEntries(bucketName) {
		return bucket.ErrBucketNotEmpty
	}
	w.bucketDeletes = append(w.bucketDeletes, BucketDelete{Name: bucketName, Cascade: cascade})
	for sk := range w.pending {
		if sk.bucketName == bucketName {
			delete(w.pending, sk)
		}
	}
	return nil
}

// bucketHasEntries reports whether bucketName holds any data key, either
// already committed in the base tree or newly staged in this
// transaction.
func (w *WriteTx) bucketHasEntries(bucketName string) bool {
	existing, err := bucket.Range(w.base, bucketName, omap.NoBound(), omap.NoBound())
	if err == nil {
		for _, e := range existing {
			sk := stagedKey{bucketName: bucketName, key: string(e.Key)}
			if _, gone := w.deleted[sk]; !gone {
				return true
			}
		}
	}
	for sk := range w.pending {
		if sk.bucketName == bucketName {
			return true
		}
	}
	return false
}

// BucketPut stages userKey=val under bucketName.
func (w *WriteTx) BucketPut(bucketName string, userKey []byte, val omap.Value) error {
	if w.state != StateActive {
		return ErrTxClosed
	}
	if !bucket.Exists(w.base, bucketName) && !w.bucketCreatedInTx(bucketName) {
		return bucket.ErrBucketNotFound
	}
	sk := stagedKey{bucketName: bucketName, key: string(userKey)}
	w.stage(sk, val)
	return nil
}

// BucketGet reads userKey from bucketName, preferring this transaction's
// own staged writes.
func (w *WriteTx) BucketGet(bucketName string, userKey []byte) (omap.Value, bool, error) {
	sk := stagedKey{bucketName: bucketName, key: string(userKey)}
	if _, gone := w.deleted[sk]; gone {
		return omap.Value{}, false, nil
	}
	if v, ok := w.pending[sk]; ok {
		return v, true, nil
	}
	return bucket.Get(w.base, bucketName, userKey)
}

// BucketDelete stages userKey's removal from bucketName.
func (w *WriteTx) BucketDelete(bucketName string, userKey []byte) error {
	if w.state != StateActive {
		return ErrTxClosed
	}
	sk := stagedKey{bucketName: bucketName, key: string(userKey)}
	w.stageDelete(sk)
	return nil
}

func (w *WriteTx) bucketCreatedInTx(name string) bool {
	for _, n := range w.bucketCreates {
		if n == name {
			return true
		}
	}
	return false
}

func (w *WriteTx) stage(sk stagedKey, val omap.Value) {
	if _, wasDeleted := w.deleted[sk]; wasDeleted {
		delete(w.deleted, sk)
	}
	if _, already := w.pending[sk]; !already {
		w.order = append(w.order, sk)
	}
	w.pending[sk] = val
}

func (w *WriteTx) stageDelete(sk stagedKey) {
	if _, already := w.pending[sk]; already {
		delete(w.pending, sk)
	}
	if _, already := w.deleted[sk]; !already {
		w.order = append(w.order, sk)
	}
	w.deleted[sk] = struct{}{}
}

// Mutation is one staged write, in the order it was first issued, ready
// to be WAL-encoded and applied to a tree clone.
type Mutation struct {
	BucketName string
	Key        []byte
	Value      omap.Value
	IsDelete   bool
}

// Mutations returns every staged mutation in staging order.
func (w *WriteTx) Mutations() []Mutation {
	out := make([]Mutation, 0, len(w.order))
	for _, sk := range w.order {
		if _, isDelete := w.deleted[sk]; isDelete {
			out = append(out, Mutation{BucketName: sk.bucketName, Key: []byte(sk.key), IsDelete: true})
			continue
		}
		if v, ok := w.pending[sk]; ok {
			out = append(out, Mutation{BucketName: sk.bucketName, Key: []byte(sk.key), Value: v})
		}
	}
	return out
}

// BucketCreates and BucketDeletes return the staged bucket-registry
// changes in the order they were issued.
func (w *WriteTx) BucketCreates() []string       { return append([]string{}, w.bucketCreates...) }
func (w *WriteTx) BucketDeletes() []BucketDelete { return append([]BucketDelete{}, w.bucketDeletes...) }

// MarkCommitting transitions Active -> Committing. The caller (the
// engine's commit pipeline) must follow with MarkCommitted or
// MarkAborted.
func (w *WriteTx) MarkCommitting() error {
	if w.state != StateActive {
		return ErrTxClosed
	}
	w.state = StateCommitting
	return nil
}

// MarkCommitted transitions Committing -> Committed.
func (w *WriteTx) MarkCommitted() { w.state = StateCommitted }

// MarkAborted transitions to Aborted from any non-terminal state,
// discarding staged changes.
func (w *WriteTx) MarkAborted() {
	w.state = StateAborted
	w.pending = nil
	w.deleted = nil
	w.order = nil
}

// ApplyTo applies every staged mutation (and bucket create/delete) to
// tree in place: bucket deletes, then bucket creates, then key
// deletions, then insertions. tree is expected to be a fresh clone of
// the base the WriteTx was opened against.
func (w *WriteTx) ApplyTo(tree *omap.Tree) error {
	for _, bd := range w.bucketDeletes {
		if err := bucket.Delete(tree, bd.Name, bd.Cascade); err != nil {
			return err
		}
	}
	for _, name := range w.bucketCreates {
		if err := bucket.Create(tree, name); err != nil {
			return err
		}
	}

	muts := w.Mutations()
	sort.SliceStable(muts, func(i, j int) bool { return muts[i].IsDelete && !muts[j].IsDelete })

	for _, m := range muts {
		if !m.IsDelete {
			continue
		}
		if m.BucketName == "" {
			tree.Remove(m.Key)
		} else {
			_ = bucket.DeleteKey(tree, m.BucketName, m.Key)
		}
	}
	for _, m := range muts {
		if m.IsDelete {
			continue
		}
		if m.BucketName == "" {
			tree.Insert(m.Key, m.Value)
		} else if err := bucket.Put(tree, m.BucketName, m.Key, m.Value); err != nil {
			return err
		}
	}
	return nil
}
