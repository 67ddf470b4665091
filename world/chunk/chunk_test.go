package chunk

import "testing"

func TestSetBlockAndBlockRoundTrip(t *testing.T) {
	c := New(Coord{X: 1, Z: -1}, 4, 4, 8)
	if got := c.Block(0, 0, 0); got != 0 {
		t.Fatalf("expected fresh chunk to read air (0), got %d", got)
	}
	if err := c.SetBlock(1, 2, 3, 42); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}
	if got := c.Block(1, 2, 3); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestPaletteOverflow(t *testing.T) {
	c := New(Coord{}, 16, 16, 16)
	for i := 0; i < PaletteCap-1; i++ {
		if err := c.SetBlock(0, 0, 0, uint16(i+1)); err != nil {
			t.Fatalf("unexpected overflow at %d: %v", i, err)
		}
	}
	if err := c.SetBlock(0, 0, 0, uint16(PaletteCap+5)); err == nil {
		t.Fatalf("expected palette overflow error")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New(Coord{X: 3, Z: 4}, 4, 4, 4)
	_ = c.SetBlock(0, 0, 0, 7)
	_ = c.SetBlock(3, 3, 3, 9)

	data := c.Encode()
	out, err := Decode(c.Coord, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !c.Equal(out) {
		t.Fatalf("decoded chunk does not match original")
	}
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	if _, err := Decode(Coord{}, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error decoding truncated data")
	}
}
