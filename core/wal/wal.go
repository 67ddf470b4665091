// Package wal implements the batched write-ahead log: a
// group-commit durable log with a background writer thread and
// handle-based completion, amortizing fsync cost across many concurrent
// producers. A bounded queue feeds a dedicated drain goroutine that
// observes a shared shutdown signal between batches, never mid-batch.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dragonkeep/server/errs"
)

const (
	defaultRingBufferSize = 10000
	defaultMaxBatchSize   = 100
	defaultMaxBatchDelay  = 10 * time.Millisecond
)

// Config configures a WAL.
type Config struct {
	Log *slog.Logger
	// Path is the WAL file path. Required.
	Path string
	// RingBufferSize bounds the number of pending entries the ring buffer
	// may hold before Append starts failing with Backpressure.
	RingBufferSize int
	// MaxBatchSize is the most entries drained into a single fsync'd batch.
	MaxBatchSize int
	// MaxBatchDelay is how long the writer waits for a batch to fill before
	// flushing whatever it has.
	MaxBatchDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.RingBufferSize <= 0 {
		c.RingBufferSize = defaultRingBufferSize
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaultMaxBatchSize
	}
	if c.MaxBatchDelay <= 0 {
		c.MaxBatchDelay = defaultMaxBatchDelay
	}
}

// Handle is returned by Append. Wait blocks until the containing batch has
// been fsynced (or failed).
type Handle struct {
	done chan struct{}
	lsn  uint64
	err  error
}

// Wait blocks until the record's batch is durable, returning any I/O error
// encountered while flushing it.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// WaitTimeout blocks up to d for durability. It returns false on timeout
// without affecting durability: the record may still become durable later.
func (h *Handle) WaitTimeout(d time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(d):
		return false
	}
}

// LSN returns the record's sequence number. The writer goroutine assigns it
// when it writes the record's batch, so it is valid only once Wait (or a
// WaitTimeout that returned true) has returned.
func (h *Handle) LSN() uint64 { return h.lsn }

type pendingEntry struct {
	typ     RecordType
	payload []byte
	handle  *Handle
}

// WAL is a batched, group-commit write-ahead log.
type WAL struct {
	conf Config

	file *os.File

	ring chan pendingEntry

	nextLSN uint64
	txSeq   atomic.Uint64

	closing  chan struct{}
	closed   sync.WaitGroup
	stopOnce sync.Once
}

// Open opens or creates the WAL file at conf.Path, writing a fresh header
// if the file is new, and starts the background writer goroutine.
func Open(conf Config) (*WAL, error) {
	conf.applyDefaults()
	f, err := os.OpenFile(conf.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.Wrap("wal.Open", errs.IoFailure, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap("wal.Open", errs.IoFailure, err)
	}
	w := &WAL{
		conf:    conf,
		file:    f,
		ring:    make(chan pendingEntry, conf.RingBufferSize),
		closing: make(chan struct{}),
	}
	if info.Size() == 0 {
		if err := w.writeHeader(0); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		lastLSN, err := w.readHeader()
		if err != nil {
			f.Close()
			return nil, err
		}
		w.nextLSN = lastLSN + 1
	}
	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		f.Close()
		return nil, errs.Wrap("wal.Open", errs.IoFailure, err)
	}
	w.closed.Add(1)
	go w.writerLoop()
	return w, nil
}

func (w *WAL) writeHeader(lastCommittedLSN uint64) error {
	buf := make([]byte, headerSize)
	copy(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], FormatVersion)
	binary.BigEndian.PutUint64(buf[8:16], lastCommittedLSN)
	if _, err := w.file.WriteAt(buf, 0); err != nil {
		return errs.Wrap("wal.writeHeader", errs.IoFailure, err)
	}
	return nil
}

func (w *WAL) readHeader() (uint64, error) {
	buf := make([]byte, headerSize)
	if _, err := w.file.ReadAt(buf, 0); err != nil {
		return 0, errs.Wrap("wal.readHeader", errs.Corrupt, err)
	}
	if string(buf[0:4]) != Magic {
		// A corrupt header is a programmer/operator error: opening a file
		// that is not a WAL at all. This fails fast rather than limping
		// along against a file it cannot interpret.
		panic(fmt.Sprintf("wal: bad magic in header of %s", w.conf.Path))
	}
	return binary.BigEndian.Uint64(buf[8:16]), nil
}

// Append enqueues a record for the next batch. It never blocks: if the ring
// buffer is full it returns errs.Backpressure immediately.
func (w *WAL) Append(typ RecordType, payload []byte) (*Handle, error) {
	h := &Handle{done: make(chan struct{})}
	select {
	case w.ring <- pendingEntry{typ: typ, payload: payload, handle: h}:
		return h, nil
	default:
		return nil, errs.New("wal.Append", errs.Backpressure)
	}
}

// AppendSync appends a record and waits inline for it to become durable,
// returning its LSN.
func (w *WAL) AppendSync(typ RecordType, payload []byte) (uint64, error) {
	h, err := w.Append(typ, payload)
	if err != nil {
		return 0, err
	}
	if err := h.Wait(); err != nil {
		return 0, err
	}
	return h.LSN(), nil
}

// LogEconomyEvent records a complete self-contained economy mutation as a
// Begin/Op/Commit triple sharing one transaction id. The writer thread may
// interleave other producers' triples with this one within the same batch,
// so the transaction id (not record adjacency) is what lets recovery
// reassemble each transaction's Op records correctly; see decodeTxn.
// The returned Handle resolves once the Commit record (and therefore the
// Begin and Op before it, since the writer is strictly sequential) is
// durable.
func (w *WAL) LogEconomyEvent(payload []byte) (*Handle, error) {
	txID := w.txSeq.Add(1)
	if _, err := w.Append(Begin, encodeTxn(txID, nil)); err != nil {
		return nil, err
	}
	if _, err := w.Append(Op, encodeTxn(txID, payload)); err != nil {
		return nil, err
	}
	return w.Append(Commit, encodeTxn(txID, nil))
}

// Checkpoint truncates the file back to header-only. It must only be
// called once durable state has been captured elsewhere (e.g. a world
// snapshot), since everything before the checkpoint becomes unrecoverable.
func (w *WAL) Checkpoint() error {
	if err := w.file.Truncate(int64(headerSize)); err != nil {
		return errs.Wrap("wal.Checkpoint", errs.IoFailure, err)
	}
	if _, err := w.file.Seek(int64(headerSize), os.SEEK_SET); err != nil {
		return errs.Wrap("wal.Checkpoint", errs.IoFailure, err)
	}
	return w.writeHeader(0)
}

// Close signals the writer goroutine to flush pending entries and exit,
// then closes the file. It blocks until the writer goroutine has stopped.
func (w *WAL) Close() error {
	w.stopOnce.Do(func() { close(w.closing) })
	w.closed.Wait()
	return w.file.Close()
}

// writerLoop drains up to MaxBatchSize entries (or waits up to
// MaxBatchDelay, whichever comes first), writes them, performs exactly one
// flush+fsync, and signals every handle in the batch. It honors shutdown
// between batches, never mid-batch.
func (w *WAL) writerLoop() {
	defer w.closed.Done()
	bw := bufio.NewWriter(w.file)

	for {
		batch, drainedClosing := w.collectBatch()
		if len(batch) > 0 {
			w.writeBatch(bw, batch)
		}
		if drainedClosing && len(w.ring) == 0 {
			return
		}
	}
}

// collectBatch blocks for up to MaxBatchDelay collecting entries, returning
// early once MaxBatchSize have been collected. It reports whether shutdown
// was observed while waiting, in which case the caller drains any
// remaining entries in its next call.
func (w *WAL) collectBatch() ([]pendingEntry, bool) {
	batch := make([]pendingEntry, 0, w.conf.MaxBatchSize)
	timer := time.NewTimer(w.conf.MaxBatchDelay)
	defer timer.Stop()

	select {
	case e := <-w.ring:
		batch = append(batch, e)
	case <-timer.C:
		return batch, false
	case <-w.closing:
		// Drain whatever is already queued before reporting shutdown.
		for {
			select {
			case e := <-w.ring:
				batch = append(batch, e)
				if len(batch) >= w.conf.MaxBatchSize {
					return batch, true
				}
			default:
				return batch, true
			}
		}
	}
	for len(batch) < w.conf.MaxBatchSize {
		select {
		case e := <-w.ring:
			batch = append(batch, e)
		case <-timer.C:
			return batch, false
		case <-w.closing:
			return batch, true
		}
	}
	return batch, false
}

func (w *WAL) writeBatch(bw *bufio.Writer, batch []pendingEntry) {
	for i := range batch {
		batch[i].handle.lsn = w.nextLSN
		w.nextLSN++
		rec := Record{LSN: batch[i].handle.lsn, Type: batch[i].typ, Payload: batch[i].payload}
		if _, err := bw.Write(rec.encode()); err != nil {
			w.failBatch(batch, errs.Wrap("wal.writeBatch", errs.IoFailure, err))
			return
		}
	}
	if err := bw.Flush(); err != nil {
		w.failBatch(batch, errs.Wrap("wal.writeBatch", errs.IoFailure, err))
		return
	}
	if err := w.file.Sync(); err != nil {
		w.failBatch(batch, errs.Wrap("wal.writeBatch", errs.IoFailure, err))
		return
	}
	for i := range batch {
		close(batch[i].handle.done)
	}
}

func (w *WAL) failBatch(batch []pendingEntry, err error) {
	w.conf.Log.Error("wal: batch flush failed", "error", err)
	for i := range batch {
		batch[i].handle.err = err
		close(batch[i].handle.done)
	}
}
