package economy

import (
	"github.com/dragonkeep/server/geom"
	"github.com/dragonkeep/server/core/loot"
	"github.com/google/uuid"
)

// breakEventSize is encodeBreakEvent's fixed payload length: client uuid
// (16) + block position (3*4) + block id (2) + granted item id (4) +
// quantity (4) + hit flag (1). It differs from the world package's
// block-modify record length so the two record shapes can never be
// mistaken for one another during recovery.
const breakEventSize = 16 + 12 + 2 + 4 + 4 + 1

// encodeBreakEvent frames a resolved break action as a WAL payload: an
// audit record distinct from the world package's own block-modify record,
// letting an operator reconstruct who broke what and what they were
// granted, independent of the world's own recovery replay.
func encodeBreakEvent(client uuid.UUID, pos geom.Pos, blockID uint16, result loot.Result) []byte {
	buf := make([]byte, 0, breakEventSize)
	buf = append(buf, client[:]...)
	buf = putI32(buf, int32(pos.X()))
	buf = putI32(buf, int32(pos.Y()))
	buf = putI32(buf, int32(pos.Z()))
	buf = putU16(buf, blockID)
	buf = putU32(buf, result.ItemID)
	buf = putU32(buf, result.Quantity)
	hit := byte(0)
	if result.Hit {
		hit = 1
	}
	return append(buf, hit)
}

// decodeBreakEvent reverses encodeBreakEvent, used by an operator tool or
// audit reader replaying the WAL independently of world recovery.
func decodeBreakEvent(payload []byte) (client uuid.UUID, pos geom.Pos, blockID uint16, itemID, qty uint32, hit bool, ok bool) {
	if len(payload) != breakEventSize {
		return uuid.UUID{}, geom.Pos{}, 0, 0, 0, false, false
	}
	copy(client[:], payload[0:16])
	pos = geom.Pos{int(getI32(payload[16:20])), int(getI32(payload[20:24])), int(getI32(payload[24:28]))}
	blockID = getU16(payload[28:30])
	itemID = getU32(payload[30:34])
	qty = getU32(payload[34:38])
	hit = payload[38] == 1
	return client, pos, blockID, itemID, qty, hit, true
}

func putI32(buf []byte, v int32) []byte {
	u := uint32(v)
	return append(buf, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
func putU16(buf []byte, v uint16) []byte { return append(buf, byte(v>>8), byte(v)) }
func putU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
func getI32(b []byte) int32 {
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}
func getU16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func getU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
