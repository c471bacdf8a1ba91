package meshpipe

import (
	"encoding/json"
	"testing"
)

func TestSnapRoundsTowardsNegativeInfinity(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 0},
		{15, 0},
		{16, 16},
		{31, 16},
		{-1, -16},
		{-16, -16},
		{-17, -32},
	}
	for _, c := range cases {
		if got := Snap(c.in); got != c.want {
			t.Fatalf("Snap(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestModIsNonNegative(t *testing.T) {
	if got := Mod(-1, 16); got != 15 {
		t.Fatalf("Mod(-1, 16) = %d", got)
	}
	if got := Mod(-16, 16); got != 0 {
		t.Fatalf("Mod(-16, 16) = %d", got)
	}
	if got := FloorDiv(-1, 16); got != -1 {
		t.Fatalf("FloorDiv(-1, 16) = %d", got)
	}
}

func TestRegionKeyOfSharesChunk(t *testing.T) {
	k := RegionKeyOf(BlockPos{X: -3, Y: 70, Z: 33})
	if k != (RegionKey{X: -16, Y: 64, Z: 32}) {
		t.Fatalf("unexpected key %v", k)
	}
	if k.String() != "-16,64,32" {
		t.Fatalf("unexpected key string %q", k.String())
	}
	if k.Chunk() != ChunkKeyOf(BlockPos{X: -3, Z: 33}) {
		t.Fatalf("region and chunk keys disagree: %v vs %v", k.Chunk(), ChunkKeyOf(BlockPos{X: -3, Z: 33}))
	}
	if k.Chunk().Region(70) != k {
		t.Fatalf("chunk region lookup disagrees")
	}
}

func TestRegionKeyAsMapKeyInJSON(t *testing.T) {
	in := map[RegionKey]int{{X: -16, Y: 0, Z: 48}: 3}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"-16,0,48":3}` {
		t.Fatalf("unexpected json %s", b)
	}

	var out map[RegionKey]int
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out[RegionKey{X: -16, Y: 0, Z: 48}] != 3 {
		t.Fatalf("round trip lost entry: %v", out)
	}
}

func TestParseKeysRejectsGarbage(t *testing.T) {
	if _, err := ParseRegionKey("1,2"); err == nil {
		t.Fatalf("expected error for two components")
	}
	if _, err := ParseChunkKey("a,b"); err == nil {
		t.Fatalf("expected error for non numeric components")
	}
	k, err := ParseChunkKey(" 16, -32")
	if err != nil || k != (ChunkKey{X: 16, Z: -32}) {
		t.Fatalf("ParseChunkKey = %v, %v", k, err)
	}
}
