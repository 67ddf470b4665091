package wal

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestAppendSyncDurableOnReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")

	w, err := Open(Config{Path: path, MaxBatchSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h, err := w.LogEconomyEvent([]byte("loot-drop-1"))
	if err != nil {
		t.Fatalf("LogEconomyEvent: %v", err)
	}
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ops, _, err := Recover(path)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(ops) != 1 || string(ops[0].Payload) != "loot-drop-1" {
		t.Fatalf("expected one recovered op with our payload, got %+v", ops)
	}
}

// TestConcurrentProducersAllDurable exercises a scaled-down form of
// end-to-end scenario 4: many producer goroutines each issuing economy
// events and waiting on completion; every completion must be reflected on
// reopen.
func TestConcurrentProducersAllDurable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concurrent.wal")

	w, err := Open(Config{Path: path, RingBufferSize: 20000, MaxBatchSize: 200})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const producers, perProducer = 50, 20
	var wg sync.WaitGroup
	var failures int32
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				h, err := w.LogEconomyEvent([]byte{byte(p), byte(i)})
				if err != nil {
					// Backpressure is a legitimate outcome under load; retry
					// once the ring has drained rather than failing the test
					// on a transient full queue.
					for err != nil {
						h, err = w.LogEconomyEvent([]byte{byte(p), byte(i)})
					}
				}
				if err := h.Wait(); err != nil {
					t.Errorf("Wait: %v", err)
				}
			}
		}(p)
	}
	wg.Wait()
	if failures != 0 {
		t.Fatalf("unexpected failures: %d", failures)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ops, _, err := Recover(path)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(ops) != producers*perProducer {
		t.Fatalf("expected %d replayable ops, got %d", producers*perProducer, len(ops))
	}
}

func TestBackpressureWhenRingFull(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backpressure.wal")
	w, err := Open(Config{Path: path, RingBufferSize: 1, MaxBatchDelay: 0})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	failed := false
	for i := 0; i < 10000; i++ {
		if _, err := w.Append(Op, []byte("x")); err != nil {
			failed = true
			break
		}
	}
	if !failed {
		t.Fatal("expected at least one Append to report Backpressure under sustained load")
	}
}

func TestRollbackDiscardsOps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollback.wal")
	w, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	txID := uint64(1)
	mustWait := func(h *Handle, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := h.Wait(); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	mustWait(w.Append(Begin, encodeTxn(txID, nil)))
	mustWait(w.Append(Op, encodeTxn(txID, []byte("should not apply"))))
	mustWait(w.Append(Rollback, encodeTxn(txID, nil)))
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ops, _, err := Recover(path)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected rolled-back ops to be discarded, got %+v", ops)
	}
}

func TestTornTailDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "torn.wal")
	w, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h, err := w.LogEconomyEvent([]byte("good"))
	if err != nil {
		t.Fatalf("LogEconomyEvent: %v", err)
	}
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate a crash mid-write by appending a truncated trailing record.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	if _, err := f.Write([]byte{0, 0, 0, 0, 0, 0, 0, 9, byte(Op), 0, 0, 0}); err != nil {
		t.Fatalf("write torn tail: %v", err)
	}
	f.Close()

	ops, _, err := Recover(path)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(ops) != 1 || string(ops[0].Payload) != "good" {
		t.Fatalf("expected only the one valid record to survive, got %+v", ops)
	}
}
