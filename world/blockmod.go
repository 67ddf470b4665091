package world

import "github.com/dragonkeep/server/world/chunk"

// encodeBlockModify frames a single block edit as a WAL payload: chunk
// coordinate, local x/y/z, the new global material id, and the tick the
// edit happened on, enough to deterministically replay the edit during
// recovery.
func encodeBlockModify(coord chunk.Coord, x, y, z int, globalID uint16, tick int64) []byte {
	buf := make([]byte, 0, 4+4+4+4+4+2+8)
	buf = putI32(buf, coord.X)
	buf = putI32(buf, coord.Z)
	buf = putI32(buf, int32(x))
	buf = putI32(buf, int32(y))
	buf = putI32(buf, int32(z))
	buf = putU16(buf, globalID)
	buf = putI64(buf, tick)
	return buf
}

// decodeBlockModify reverses encodeBlockModify.
func decodeBlockModify(payload []byte) (coord chunk.Coord, x, y, z int, globalID uint16, tick int64, ok bool) {
	if len(payload) != 30 {
		return chunk.Coord{}, 0, 0, 0, 0, 0, false
	}
	coord.X = getI32(payload[0:4])
	coord.Z = getI32(payload[4:8])
	x = int(getI32(payload[8:12]))
	y = int(getI32(payload[12:16]))
	z = int(getI32(payload[16:20]))
	globalID = getU16(payload[20:22])
	tick = getI64(payload[22:30])
	return coord, x, y, z, globalID, tick, true
}

func putI32(buf []byte, v int32) []byte {
	u := uint32(v)
	return append(buf, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
func putU16(buf []byte, v uint16) []byte { return append(buf, byte(v>>8), byte(v)) }
func putI64(buf []byte, v int64) []byte {
	u := uint64(v)
	return append(buf,
		byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
		byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
func getI32(b []byte) int32 {
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}
func getU16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func getI64(b []byte) int64 {
	u := uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
	return int64(u)
}
