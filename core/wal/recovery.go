package wal

import (
	"io"
	"os"

	"github.com/dragonkeep/server/errs"
)

// RecoveredOp is one Op record whose enclosing transaction was found to be
// committed during replay, in commit order.
type RecoveredOp struct {
	LSN     uint64
	Payload []byte
}

// Recover reads the WAL file at path from after its header, replaying
// records in order and tracking open transactions by their embedded
// transaction id. Reaching a Commit emits that transaction's Op records as
// "to apply"; a Rollback or EOF with the transaction still open discards
// them. A CRC mismatch or short read terminates replay at the last valid
// record, and the remaining bytes are treated as a torn tail and discarded.
func Recover(path string) ([]RecoveredOp, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errs.Wrap("wal.Recover", errs.IoFailure, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, errs.Wrap("wal.Recover", errs.IoFailure, err)
	}
	if len(data) < headerSize {
		return nil, 0, errs.New("wal.Recover", errs.Corrupt)
	}
	if string(data[0:4]) != Magic {
		panic("wal.Recover: bad magic header")
	}

	buf := data[headerSize:]
	open := make(map[uint64][]RecoveredOp)
	var committed []RecoveredOp
	var lastLSN uint64

	for len(buf) > 0 {
		rec, n, ok := decodeRecord(buf)
		if !ok {
			break // torn tail: stop replay, discard the remainder.
		}
		buf = buf[n:]
		lastLSN = rec.LSN

		txID, body, ok := decodeTxn(rec.Payload)
		if !ok {
			continue
		}
		switch rec.Type {
		case Begin:
			open[txID] = nil
		case Op:
			open[txID] = append(open[txID], RecoveredOp{LSN: rec.LSN, Payload: body})
		case Commit:
			committed = append(committed, open[txID]...)
			delete(open, txID)
		case Rollback:
			delete(open, txID)
		}
	}
	// Any transactions still open at EOF are discarded (uncommitted
	// transactions are lost on crash recovery; the atomic property is
	// preserved).
	return committed, lastLSN, nil
}
