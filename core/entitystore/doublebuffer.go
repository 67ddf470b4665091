package entitystore

import (
	"sync/atomic"

	"github.com/dragonkeep/server/errs"
)

// DoubleBuffer gives the simulation an exclusive, mutable view of world
// state while concurrent readers see the previous frame's coherent
// snapshot. At most one writer handle may exist at a time; any number of
// reader handles may coexist; a buffer swap requires zero live writer
// handles.
//
// Concurrency: writer exclusivity is enforced with a non-blocking CAS on a
// boolean flag (writerLocked). Readers never synchronize with the writer;
// they only ever observe the read buffer.
type DoubleBuffer struct {
	buffers  [2]*Store
	writeIdx atomic.Uint32

	writerLocked atomic.Bool
	readerCount  atomic.Int64
}

// New creates a DoubleBuffer with both halves pre-allocated to cap.
func New(cap Capacities) *DoubleBuffer {
	return &DoubleBuffer{
		buffers: [2]*Store{newStore(cap), newStore(cap)},
	}
}

// WriterHandle grants exclusive mutation rights to the write buffer. It must
// be released (Release) before the next swap.
type WriterHandle struct {
	db    *DoubleBuffer
	store *Store
}

// ReaderHandle grants read-only access to the read buffer. Any number may
// coexist, including alongside a live WriterHandle.
type ReaderHandle struct {
	db    *DoubleBuffer
	store *Store
}

// AcquireWriter returns a WriterHandle onto the current write buffer. It
// fails with errs.AlreadyLocked if a writer handle is already live; this is
// a non-blocking CAS try-acquire.
func (db *DoubleBuffer) AcquireWriter() (*WriterHandle, error) {
	if !db.writerLocked.CompareAndSwap(false, true) {
		return nil, errs.New("entitystore.DoubleBuffer.AcquireWriter", errs.AlreadyLocked)
	}
	return &WriterHandle{db: db, store: db.buffers[db.writeIdx.Load()]}, nil
}

// Release gives up the writer handle, allowing a future AcquireWriter or
// Swap to proceed.
func (w *WriterHandle) Release() {
	if w == nil || w.store == nil {
		return
	}
	w.store = nil
	w.db.writerLocked.Store(false)
}

// Store returns the underlying write-buffer Store. Accessing it after
// Release is a programmer error: the returned value may be swapped out from
// under the caller.
func (w *WriterHandle) Store() *Store { return w.store }

// AcquireReader returns a ReaderHandle onto the current read buffer. This
// always succeeds; it only increments a reader count.
func (db *DoubleBuffer) AcquireReader() *ReaderHandle {
	db.readerCount.Add(1)
	readIdx := db.writeIdx.Load() ^ 1
	return &ReaderHandle{db: db, store: db.buffers[readIdx]}
}

// Release gives up the reader handle.
func (r *ReaderHandle) Release() {
	if r == nil || r.store == nil {
		return
	}
	r.store = nil
	r.db.readerCount.Add(-1)
}

// Store returns the underlying read-buffer Store.
func (r *ReaderHandle) Store() *Store { return r.store }

// ReaderCount returns the number of currently live reader handles.
func (db *DoubleBuffer) ReaderCount() int64 { return db.readerCount.Load() }

// WriterLive reports whether a writer handle is currently held.
func (db *DoubleBuffer) WriterLive() bool { return db.writerLocked.Load() }

// Swap flips the read/write index and performs the Dirty Copy: every row
// the just-finished write buffer marked dirty is copied into the new write
// buffer (which otherwise still holds state from two frames ago), and the
// just-finished buffer's dirty bitmap is cleared.
//
// Precondition: no live writer handle. Swap is single-threaded, called only
// from the tick driver between phases; calling it while a writer handle is
// held is a programmer error and panics.
func (db *DoubleBuffer) Swap() (dirtyRows int) {
	if db.writerLocked.Load() {
		panic("entitystore: Swap called while a writer handle is live")
	}
	oldWrite := db.writeIdx.Load()
	newWrite := oldWrite ^ 1
	// The buffer that was just written (oldWrite) becomes the new read
	// buffer; the buffer that was the old read buffer (newWrite) becomes the
	// new write buffer and must absorb every row oldWrite marked dirty.
	dirtyRows = db.buffers[newWrite].dirtyCopyFrom(db.buffers[oldWrite])
	db.writeIdx.Store(newWrite)
	return dirtyRows
}

// FullSync makes both buffers bitwise-identical to the current write
// buffer. Used once at startup before ticking begins.
func (db *DoubleBuffer) FullSync() {
	write := db.buffers[db.writeIdx.Load()]
	read := db.buffers[db.writeIdx.Load()^1]
	read.fullSyncFrom(write)
}

// VerifyBuffers is a developer-only O(N) consistency check confirming both
// buffers are bitwise-equal. It must only be called when no writer is live
// and no mutation is pending (e.g. immediately after a Swap following an
// idle frame). A fnv1a checksum comparison is tried first; it is certain
// proof of inequality and only falls back to the full field-by-field Equal
// to confirm a checksum match (hash collisions are astronomically unlikely
// here but Equal is cheap enough at this scale to make the fallback free
// insurance).
func (db *DoubleBuffer) VerifyBuffers() bool {
	a, b := db.buffers[0], db.buffers[1]
	if a.Checksum() != b.Checksum() {
		return false
	}
	return a.Equal(b)
}
