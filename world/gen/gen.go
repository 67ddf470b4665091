// Package gen implements deterministic procedural chunk generation, seeded
// by (world_seed, chunk_coord) so that a chunk is bit-identical whether it
// is generated fresh or regenerated after eviction. Two low-frequency noise
// fields keyed by salted copies of the world seed drive a per-column biome
// classification, and a self-contained hash-based value noise field drives
// surface height. Generate has no decoration pass.
package gen

import (
	"math"

	"github.com/dragonkeep/server/world/chunk"
)

// Biome is a coarse climate classification of a chunk column.
type Biome uint8

const (
	BiomeOcean Biome = iota
	BiomePlains
	BiomeForest
	BiomeDesert
	BiomeMountain
)

const (
	seaLevel = 62
	// Global material ids. Real content registries are out of scope here
	// (asset/content pipelines are a separate concern); these stand in as
	// the small fixed palette a generated world actually needs.
	airID    uint16 = 0
	stoneID  uint16 = 1
	waterID  uint16 = 2
	grassID  uint16 = 3
	sandID   uint16 = 4
	snowID   uint16 = 5
	bedrockID uint16 = 6
)

// Generator produces chunks deterministically from a world seed.
type Generator struct {
	Seed int64
}

// New creates a Generator for the given world seed.
func New(seed int64) *Generator { return &Generator{Seed: seed} }

// DeriveSubSeed mixes the world seed, a chunk coordinate, and a purpose
// salt into an independent stream, used by callers that need their own
// randomness (e.g. decoration passes) without disturbing the height field.
func DeriveSubSeed(seed int64, c chunk.Coord, salt uint32) int64 {
	h := uint64(seed) ^ 0x9E3779B97F4A7C15
	h ^= uint64(uint32(c.X)) * 0xC2B2AE3D27D4EB4F
	h = (h << 31) | (h >> 33)
	h ^= uint64(uint32(c.Z)) * 0x165667B19E3779F9
	h ^= uint64(salt) * 0x27D4EB2F165667C5
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33
	return int64(h)
}

// hash2 is a deterministic integer hash of two coordinates and a seed,
// the value-noise analogue of pmgen's rand.NewRandom-seeded simplex
// sampler: reproducible, fast, with no internal state to carry between
// calls.
func hash2(seed int64, x, z int64) uint64 {
	h := uint64(seed)
	h ^= uint64(x) * 0xC2B2AE3D27D4EB4F
	h = (h << 31) | (h >> 33)
	h ^= uint64(z) * 0x165667B19E3779F9
	h ^= h >> 29
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 32
	h *= 0xC4CEB9FE1A85EC53
	h ^= h >> 33
	return h
}

// valueAt returns a smoothly hash-interpolated value in [0,1) at the given
// world coordinate and octave scale, bilinearly interpolating between
// hashed lattice corners.
func valueAt(seed int64, x, z float64, scale float64) float64 {
	fx, fz := x/scale, z/scale
	x0, z0 := math.Floor(fx), math.Floor(fz)
	x1, z1 := x0+1, z0+1
	tx, tz := fx-x0, fz-z0
	tx = tx * tx * (3 - 2*tx)
	tz = tz * tz * (3 - 2*tz)

	corner := func(cx, cz float64) float64 {
		h := hash2(seed, int64(cx), int64(cz))
		return float64(h>>40) / float64(1<<24)
	}
	v00, v10 := corner(x0, z0), corner(x1, z0)
	v01, v11 := corner(x0, z1), corner(x1, z1)
	top := v00 + (v10-v00)*tx
	bot := v01 + (v11-v01)*tx
	return top + (bot-top)*tz
}

// fbm sums octaves octaves of valueAt at halving scale (doubling frequency)
// and halving amplitude, the multi-octave step pmgen's simplex sampler also performs.
func fbm(seed int64, x, z float64, octaves int, baseScale float64) float64 {
	var sum, amp, ampSum float64
	scale := baseScale
	amp = 1
	for i := 0; i < octaves; i++ {
		sum += valueAt(seed, x, z, scale) * amp
		ampSum += amp
		amp *= 0.5
		scale *= 0.5
	}
	return sum / ampSum
}

// biomeAt classifies a world column by two independent low-frequency noise
// fields standing in for temperature/humidity, mirroring pmgen's
// biomeSelector partitioning of a 2D climate space into named biomes.
func (g *Generator) biomeAt(worldX, worldZ int64) Biome {
	temp := fbm(g.Seed^0x1, float64(worldX), float64(worldZ), 3, 256)
	humidity := fbm(g.Seed^0x2, float64(worldX), float64(worldZ), 3, 256)
	switch {
	case temp < 0.25:
		return BiomeMountain
	case temp > 0.75 && humidity < 0.3:
		return BiomeDesert
	case humidity > 0.6:
		return BiomeForest
	case humidity < 0.2:
		return BiomeOcean
	default:
		return BiomePlains
	}
}

func heightFor(b Biome, base float64) int {
	switch b {
	case BiomeOcean:
		return seaLevel - 4 + int(base*6)
	case BiomeMountain:
		return seaLevel + 20 + int(base*60)
	case BiomeDesert:
		return seaLevel + 2 + int(base*8)
	case BiomeForest:
		return seaLevel + 4 + int(base*12)
	default:
		return seaLevel + 1 + int(base*10)
	}
}

func surfaceBlock(b Biome, h int) uint16 {
	if h < seaLevel {
		return waterID
	}
	switch b {
	case BiomeDesert:
		return sandID
	case BiomeMountain:
		if h > seaLevel+60 {
			return snowID
		}
		return stoneID
	default:
		return grassID
	}
}

// Generate deterministically produces the chunk at coord: every call with
// the same Generator seed and coord returns a bit-identical chunk,
// regardless of generation history.
func (g *Generator) Generate(coord chunk.Coord, sizeX, sizeZ, height int) *chunk.Chunk {
	c := chunk.New(coord, sizeX, sizeZ, height)
	for lx := 0; lx < sizeX; lx++ {
		for lz := 0; lz < sizeZ; lz++ {
			wx := int64(coord.X)*int64(sizeX) + int64(lx)
			wz := int64(coord.Z)*int64(sizeZ) + int64(lz)
			b := g.biomeAt(wx, wz)
			base := fbm(g.Seed, float64(wx), float64(wz), 4, 64)
			h := heightFor(b, base)
			if h >= height {
				h = height - 1
			}
			top := surfaceBlock(b, h)
			for y := 0; y < height; y++ {
				var id uint16
				switch {
				case y == 0:
					id = bedrockID
				case y < h-3:
					id = stoneID
				case y < h:
					if b == BiomeDesert {
						id = sandID
					} else {
						id = stoneID
					}
				case y == h:
					id = top
				case y <= seaLevel:
					id = waterID
				default:
					id = airID
				}
				if id == airID {
					continue // local index 0 already defaults to air.
				}
				_ = c.SetBlock(lx, y, lz, id)
			}
		}
	}
	return c
}
