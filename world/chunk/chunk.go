// Package chunk implements the fixed-size cuboid of blocks
// generated and persisted as a unit, including the bounded local palette
// that maps 8-bit local indices to global 16-bit material ids. A chunk is
// a single flat block array plus one palette, rather than a stack of
// independently paletted sub-chunks.
package chunk

import (
	"github.com/dragonkeep/server/errs"
	"github.com/klauspost/compress/s2"
)

// PaletteCap is the maximum number of distinct global material ids a single
// chunk's local palette may hold. Local index 0 is reserved for "air" and
// always maps to global id 0.
const PaletteCap = 256

// Coord identifies a chunk by its (x,z) position in chunk units.
type Coord struct {
	X, Z int32
}

// Add returns c translated by (dx,dz) chunks.
func (c Coord) Add(dx, dz int32) Coord { return Coord{c.X + dx, c.Z + dz} }

// DistanceSq returns the squared chunk-grid distance between c and o, used
// for radius comparisons without a sqrt.
func (c Coord) DistanceSq(o Coord) int64 {
	dx, dz := int64(c.X-o.X), int64(c.Z-o.Z)
	return dx*dx + dz*dz
}

// Chunk is a SizeX x SizeZ x Height cuboid of blocks, addressed by local
// coordinates, with a bounded palette translating 8-bit local indices to
// global 16-bit material ids.
type Chunk struct {
	Coord                    Coord
	SizeX, SizeZ, Height     int
	blocks                   []uint8
	palette                  []uint16
	paletteIndex             map[uint16]uint8
}

// New creates an empty chunk (entirely local index 0, i.e. air) of the
// given dimensions.
func New(coord Coord, sizeX, sizeZ, height int) *Chunk {
	c := &Chunk{
		Coord: coord, SizeX: sizeX, SizeZ: sizeZ, Height: height,
		blocks:       make([]uint8, sizeX*sizeZ*height),
		palette:      make([]uint16, 1, PaletteCap),
		paletteIndex: make(map[uint16]uint8, PaletteCap),
	}
	c.palette[0] = 0 // air reserved at local index 0.
	c.paletteIndex[0] = 0
	return c
}

func (c *Chunk) offset(x, y, z int) int {
	return (y*c.SizeZ+z)*c.SizeX + x
}

// Block returns the global material id at local coordinates (x,y,z).
func (c *Chunk) Block(x, y, z int) uint16 {
	return c.palette[c.blocks[c.offset(x, y, z)]]
}

// SetBlock writes globalID at local coordinates (x,y,z), growing the
// palette if globalID has not been seen in this chunk before. It returns
// errs.Corrupt if the palette would grow past PaletteCap.
func (c *Chunk) SetBlock(x, y, z int, globalID uint16) error {
	idx, ok := c.paletteIndex[globalID]
	if !ok {
		if len(c.palette) >= PaletteCap {
			return errs.New("chunk.Chunk.SetBlock", errs.Corrupt)
		}
		idx = uint8(len(c.palette))
		c.palette = append(c.palette, globalID)
		c.paletteIndex[globalID] = idx
	}
	c.blocks[c.offset(x, y, z)] = idx
	return nil
}

// Palette returns the chunk's local-index-to-global-id table, in index
// order. The caller must not mutate the returned slice.
func (c *Chunk) Palette() []uint16 { return c.palette }

// Equal reports whether c and o hold bitwise-identical block data and
// palettes, used by the deterministic-generation property test.
func (c *Chunk) Equal(o *Chunk) bool {
	if c.Coord != o.Coord || c.SizeX != o.SizeX || c.SizeZ != o.SizeZ || c.Height != o.Height {
		return false
	}
	if len(c.palette) != len(o.palette) {
		return false
	}
	for i := range c.palette {
		if c.palette[i] != o.palette[i] {
			return false
		}
	}
	if len(c.blocks) != len(o.blocks) {
		return false
	}
	for i := range c.blocks {
		if c.blocks[i] != o.blocks[i] {
			return false
		}
	}
	return true
}

// Encode serializes the chunk to a compact byte form: dimensions, palette,
// then the block index array compressed with s2 (klauspost/compress), a
// dependency already present elsewhere in this module. Persisted chunks require
// only that a persisted chunk file carry a compressed block array of known
// fixed uncompressed size behind size-prefixed framing; the header below
// records exactly that uncompressed size so Decode can allocate once and
// decompress in place.
func (c *Chunk) Encode() []byte {
	compressed := s2.Encode(nil, c.blocks)
	buf := make([]byte, 0, 20+len(c.palette)*2+len(compressed))
	buf = appendUint32(buf, uint32(c.SizeX))
	buf = appendUint32(buf, uint32(c.SizeZ))
	buf = appendUint32(buf, uint32(c.Height))
	buf = appendUint32(buf, uint32(len(c.palette)))
	for _, id := range c.palette {
		buf = appendUint16(buf, id)
	}
	buf = appendUint32(buf, uint32(len(c.blocks)))
	buf = append(buf, compressed...)
	return buf
}

// Decode reconstructs a Chunk previously produced by Encode, for coord.
func Decode(coord Coord, data []byte) (*Chunk, error) {
	if len(data) < 16 {
		return nil, errs.New("chunk.Decode", errs.Corrupt)
	}
	sizeX := readUint32(data[0:4])
	sizeZ := readUint32(data[4:8])
	height := readUint32(data[8:12])
	paletteLen := readUint32(data[12:16])
	off := 16
	if len(data) < off+int(paletteLen)*2 {
		return nil, errs.New("chunk.Decode", errs.Corrupt)
	}
	palette := make([]uint16, paletteLen)
	paletteIndex := make(map[uint16]uint8, paletteLen)
	for i := range palette {
		palette[i] = readUint16(data[off : off+2])
		paletteIndex[palette[i]] = uint8(i)
		off += 2
	}
	if len(data) < off+4 {
		return nil, errs.New("chunk.Decode", errs.Corrupt)
	}
	uncompressedLen := readUint32(data[off : off+4])
	off += 4
	want := int(sizeX) * int(sizeZ) * int(height)
	if int(uncompressedLen) != want {
		return nil, errs.New("chunk.Decode", errs.Corrupt)
	}
	blocks, err := s2.Decode(nil, data[off:])
	if err != nil {
		return nil, errs.Wrap("chunk.Decode", errs.Corrupt, err)
	}
	if len(blocks) != want {
		return nil, errs.New("chunk.Decode", errs.Corrupt)
	}
	return &Chunk{
		Coord: coord, SizeX: int(sizeX), SizeZ: int(sizeZ), Height: int(height),
		blocks: blocks, palette: palette, paletteIndex: paletteIndex,
	}, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}
func readUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
func readUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
