package wal

import (
	"encoding/binary"
	"hash/crc32"
)

// RecordType tags the kind of a WAL record.
type RecordType uint8

const (
	Begin RecordType = iota + 1
	Op
	Commit
	Rollback
)

func (t RecordType) String() string {
	switch t {
	case Begin:
		return "Begin"
	case Op:
		return "Op"
	case Commit:
		return "Commit"
	case Rollback:
		return "Rollback"
	default:
		return "Unknown"
	}
}

// Magic and version identify the WAL file format in its header.
const (
	Magic         = "OWAL"
	FormatVersion = uint32(1)
	headerSize    = 4 + 4 + 8 // magic + version + last_committed_lsn
)

// recordHeaderSize is the fixed-size portion of a record preceding its
// payload: LSN(8) | type(1) | payload length(4).
const recordHeaderSize = 8 + 1 + 4

// Record is one frame of the write-ahead log: LSN, type, payload bytes, and
// a CRC32 over the preceding header+payload bytes.
type Record struct {
	LSN     uint64
	Type    RecordType
	Payload []byte
}

// encode returns the on-wire framing for r in a newly allocated slice of
// recordHeaderSize + len(r.Payload) + 4 (CRC) bytes.
func (r Record) encode() []byte {
	buf := make([]byte, recordHeaderSize+len(r.Payload)+4)
	binary.BigEndian.PutUint64(buf[0:8], r.LSN)
	buf[8] = byte(r.Type)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(r.Payload)))
	copy(buf[13:], r.Payload)
	crc := crc32.ChecksumIEEE(buf[:13+len(r.Payload)])
	binary.BigEndian.PutUint32(buf[13+len(r.Payload):], crc)
	return buf
}

// decodeRecord reads one record from buf, returning the record, the number
// of bytes consumed, and whether the frame was well-formed (length fits and
// CRC matches). A false return means the remaining bytes are a torn tail
// and replay must stop here.
func decodeRecord(buf []byte) (Record, int, bool) {
	if len(buf) < recordHeaderSize {
		return Record{}, 0, false
	}
	lsn := binary.BigEndian.Uint64(buf[0:8])
	typ := RecordType(buf[8])
	length := binary.BigEndian.Uint32(buf[9:13])
	total := recordHeaderSize + int(length) + 4
	if len(buf) < total {
		return Record{}, 0, false
	}
	payload := buf[13 : 13+int(length)]
	wantCRC := binary.BigEndian.Uint32(buf[13+int(length) : total])
	gotCRC := crc32.ChecksumIEEE(buf[:13+int(length)])
	if wantCRC != gotCRC {
		return Record{}, 0, false
	}
	return Record{LSN: lsn, Type: typ, Payload: payload}, total, true
}
