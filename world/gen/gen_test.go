package gen

import (
	"testing"

	"github.com/dragonkeep/server/world/chunk"
)

func TestGenerateIsDeterministic(t *testing.T) {
	g := New(1234)
	coord := chunk.Coord{X: 5, Z: -2}

	a := g.Generate(coord, 16, 16, 64)
	b := g.Generate(coord, 16, 16, 64)
	if !a.Equal(b) {
		t.Fatalf("expected two generations of the same chunk with the same seed to be identical")
	}
}

func TestGenerateDiffersAcrossSeeds(t *testing.T) {
	coord := chunk.Coord{X: 0, Z: 0}
	a := New(1).Generate(coord, 16, 16, 64)
	b := New(2).Generate(coord, 16, 16, 64)
	if a.Equal(b) {
		t.Fatalf("expected different seeds to produce different terrain")
	}
}

func TestDeriveSubSeedVariesWithSalt(t *testing.T) {
	coord := chunk.Coord{X: 1, Z: 1}
	a := DeriveSubSeed(42, coord, 1)
	b := DeriveSubSeed(42, coord, 2)
	if a == b {
		t.Fatalf("expected distinct salts to derive distinct sub-seeds")
	}
}

func TestBedrockAtFloor(t *testing.T) {
	g := New(7)
	c := g.Generate(chunk.Coord{}, 4, 4, 32)
	if got := c.Block(0, 0, 0); got != bedrockID {
		t.Fatalf("expected bedrock at y=0, got %d", got)
	}
}
