package meshpipe

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionSize is the edge length of a meshing region and the width of a chunk column.
const RegionSize = 16

// BlockPos is an absolute block position.
type BlockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p BlockPos) Offset(dx, dy, dz int) BlockPos {
	return BlockPos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p BlockPos) String() string {
	return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
}

// RegionKey identifies a 16x16x16 region by its minimum corner.
type RegionKey struct {
	X, Y, Z int
}

// ChunkKey identifies a chunk column by its minimum (x, z) corner.
type ChunkKey struct {
	X, Z int
}

// Snap rounds v down to the nearest multiple of RegionSize, including for negative values.
func Snap(v int) int {
	return FloorDiv(v, RegionSize) * RegionSize
}

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(v, d int) int {
	q := v / d
	if (v%d != 0) && ((v < 0) != (d < 0)) {
		q--
	}
	return q
}

// Mod returns the non-negative remainder of v / d.
func Mod(v, d int) int {
	m := v % d
	if m < 0 {
		m += d
	}
	return m
}

func RegionKeyOf(p BlockPos) RegionKey {
	return RegionKey{X: Snap(p.X), Y: Snap(p.Y), Z: Snap(p.Z)}
}

func ChunkKeyOf(p BlockPos) ChunkKey {
	return ChunkKey{X: Snap(p.X), Z: Snap(p.Z)}
}

func (k RegionKey) Pos() BlockPos {
	return BlockPos{X: k.X, Y: k.Y, Z: k.Z}
}

func (k RegionKey) Chunk() ChunkKey {
	return ChunkKey{X: k.X, Z: k.Z}
}

func (k RegionKey) String() string {
	return fmt.Sprintf("%d,%d,%d", k.X, k.Y, k.Z)
}

func (k RegionKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RegionKey) UnmarshalText(b []byte) error {
	parsed, err := ParseRegionKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("%d,%d", k.X, k.Z)
}

func (k ChunkKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ChunkKey) UnmarshalText(b []byte) error {
	parsed, err := ParseChunkKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Region returns the key of the region at height y inside this chunk column.
func (k ChunkKey) Region(y int) RegionKey {
	return RegionKey{X: k.X, Y: Snap(y), Z: k.Z}
}

func ParseRegionKey(s string) (RegionKey, error) {
	v, err := parseInts(s, 3)
	if err != nil {
		return RegionKey{}, fmt.Errorf("bad region key %q: %w", s, err)
	}
	return RegionKey{X: v[0], Y: v[1], Z: v[2]}, nil
}

func ParseChunkKey(s string) (ChunkKey, error) {
	v, err := parseInts(s, 2)
	if err != nil {
		return ChunkKey{}, fmt.Errorf("bad chunk key %q: %w", s, err)
	}
	return ChunkKey{X: v[0], Z: v[1]}, nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d components, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
