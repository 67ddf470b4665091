package wal

import "encoding/binary"

// Begin/Op/Commit/Rollback payloads are prefixed with an 8-byte transaction
// id so that recovery can reassemble a transaction's Op records correctly
// even when the writer thread has interleaved unrelated transactions'
// records within the same or adjacent batches (concurrent producers do not
// serialize against each other before appending their own Begin/Op/Commit
// triple). Transactions are tracked by this explicit id rather than the
// Begin record's own LSN, since a producer cannot know that LSN before the
// writer thread assigns it; see DESIGN.md for more on this choice.
func encodeTxn(txID uint64, body []byte) []byte {
	buf := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(buf[:8], txID)
	copy(buf[8:], body)
	return buf
}

func decodeTxn(payload []byte) (txID uint64, body []byte, ok bool) {
	if len(payload) < 8 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint64(payload[:8]), payload[8:], true
}
