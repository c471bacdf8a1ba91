package meshpipe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"
)

const sectionVolume = RegionSize * RegionSize * RegionSize

var ErrIncompleteChunk = errors.New("chunk is not fully generated")

const AirState = "minecraft:air"

var airBlocks = map[string]struct{}{
	"minecraft:air":            {},
	"minecraft:cave_air":       {},
	"minecraft:void_air":       {},
	"minecraft:structure_void": {},
	"minecraft:barrier":        {},
	"minecraft:light":          {},
}

// IsAir reports whether a block state produces no geometry and does not occlude neighbours.
func IsAir(state string) bool {
	if state == "" {
		return true
	}
	_, ok := airBlocks[BlockName(state)]
	return ok
}

// BlockName strips the property suffix from a block state string.
func BlockName(state string) string {
	if idx := strings.IndexByte(state, '/'); idx >= 0 {
		return state[:idx]
	}
	return state
}

// Section holds one 16x16x16 block of a column as palette indices.
type Section struct {
	palette []string
	index   map[string]uint16
	// blocks is nil while the whole section is palette[0]
	blocks []uint16
}

func newSection(fill string) *Section {
	return &Section{
		palette: []string{fill},
		index:   map[string]uint16{fill: 0},
	}
}

func (s *Section) get(i int) string {
	if s.blocks == nil {
		return s.palette[0]
	}
	return s.palette[s.blocks[i]]
}

func (s *Section) set(i int, state string) {
	id, ok := s.index[state]
	if !ok {
		id = uint16(len(s.palette))
		s.palette = append(s.palette, state)
		s.index[state] = id
	}
	if s.blocks == nil {
		if id == 0 {
			return
		}
		s.blocks = make([]uint16, sectionVolume)
	}
	s.blocks[i] = id
}

// Empty reports whether the section contains only air.
func (s *Section) Empty() bool {
	if s.blocks == nil {
		return IsAir(s.palette[0])
	}
	for _, state := range s.palette {
		if !IsAir(state) {
			return false
		}
	}
	return true
}

// Column is a worker's copy of one chunk column.
type Column struct {
	X, Z int

	minSection int
	sections   []*Section
}

// NewColumn creates an all-air column spanning [minY, minY+height).
func NewColumn(x, z, minY, height int) *Column {
	count := FloorDiv(height+RegionSize-1, RegionSize)
	c := &Column{
		X:          Snap(x),
		Z:          Snap(z),
		minSection: FloorDiv(minY, RegionSize),
		sections:   make([]*Section, count),
	}
	for i := range c.sections {
		c.sections[i] = newSection(AirState)
	}
	return c
}

// DecodeColumn decodes a compressed chunk as stored in a region file sector.
func DecodeColumn(data []byte) (*Column, error) {
	var chunk save.Chunk
	if err := chunk.Load(data); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	return ColumnFromChunk(&chunk)
}

// ColumnFromChunk copies a decoded chunk into palette-index form.
func ColumnFromChunk(chunk *save.Chunk) (*Column, error) {
	if chunk.Status != "minecraft:full" &&
		chunk.Status != "minecraft:spawn" &&
		chunk.Status != "minecraft:postprocessed" &&
		chunk.Status != "minecraft:fullchunk" {
		return nil, fmt.Errorf("chunk %d,%d status %q: %w", chunk.XPos, chunk.ZPos, chunk.Status, ErrIncompleteChunk)
	}

	if len(chunk.Sections) == 0 {
		return &Column{X: int(chunk.XPos) * RegionSize, Z: int(chunk.ZPos) * RegionSize}, nil
	}

	lowest, highest := int(chunk.Sections[0].Y), int(chunk.Sections[0].Y)
	for _, section := range chunk.Sections {
		lowest = min(lowest, int(section.Y))
		highest = max(highest, int(section.Y))
	}

	c := &Column{
		X:          int(chunk.XPos) * RegionSize,
		Z:          int(chunk.ZPos) * RegionSize,
		minSection: lowest,
		sections:   make([]*Section, highest-lowest+1),
	}
	for i := range c.sections {
		c.sections[i] = newSection(AirState)
	}

	for _, raw := range chunk.Sections {
		if len(raw.BlockStates.Palette) == 0 {
			continue
		}
		c.sections[int(raw.Y)-lowest] = decodeSection(raw)
	}
	return c, nil
}

func decodeSection(raw save.Section) *Section {
	s := &Section{
		palette: make([]string, len(raw.BlockStates.Palette)),
		index:   make(map[string]uint16, len(raw.BlockStates.Palette)),
	}
	for i, state := range raw.BlockStates.Palette {
		name := blockStateString(state)
		s.palette[i] = name
		if _, ok := s.index[name]; !ok {
			s.index[name] = uint16(i)
		}
	}

	if len(s.palette) == 1 || len(raw.BlockStates.Data) == 0 {
		return s
	}

	bits := calcBitsPerValue(sectionVolume, len(raw.BlockStates.Data))
	storage := level.NewBitStorage(bits, sectionVolume, raw.BlockStates.Data)
	s.blocks = make([]uint16, sectionVolume)
	for i := range s.blocks {
		id := storage.Get(i)
		if id >= len(s.palette) {
			id = 0
		}
		s.blocks[i] = uint16(id)
	}
	return s
}

func blockStateString(state save.BlockState) string {
	if state.Properties.Type == nbt.TagEnd {
		return state.Name
	}
	return state.Name + "/" + state.Properties.String()
}

func calcBitsPerValue(length, longs int) (bits int) {
	if longs == 0 || length == 0 {
		return 0
	}
	valuePerLong := (length + longs - 1) / longs
	return 64 / valuePerLong
}

func sectionIndex(x, y, z int) int {
	return ((Mod(y, RegionSize)*RegionSize)+Mod(z, RegionSize))*RegionSize + Mod(x, RegionSize)
}

func (c *Column) MinY() int {
	return c.minSection * RegionSize
}

func (c *Column) MaxY() int {
	return (c.minSection + len(c.sections)) * RegionSize
}

// Section returns the section containing height y, or nil outside the column.
func (c *Column) Section(y int) *Section {
	i := FloorDiv(y, RegionSize) - c.minSection
	if i < 0 || i >= len(c.sections) {
		return nil
	}
	return c.sections[i]
}

func (c *Column) Block(x, y, z int) string {
	s := c.Section(y)
	if s == nil {
		return AirState
	}
	return s.get(sectionIndex(x, y, z))
}

// SetBlock writes a block state. Writes outside the column's vertical range are ignored.
func (c *Column) SetBlock(x, y, z int, state string) bool {
	s := c.Section(y)
	if s == nil {
		return false
	}
	s.set(sectionIndex(x, y, z), state)
	return true
}

// Heightmap returns, for every (x, z) in the column, the height of the highest non-air block
// above minY, clamped to a byte. Columns with nothing solid report 0.
func (c *Column) Heightmap(minY int) [RegionSize * RegionSize]byte {
	var out [RegionSize * RegionSize]byte
	for z := 0; z < RegionSize; z++ {
		for x := 0; x < RegionSize; x++ {
			for y := c.MaxY() - 1; y >= c.MinY(); y-- {
				s := c.Section(y)
				if s.blocks == nil && IsAir(s.palette[0]) {
					y = FloorDiv(y, RegionSize) * RegionSize
					continue
				}
				if IsAir(s.get(sectionIndex(x, y, z))) {
					continue
				}
				h := y - minY
				if h < 0 {
					h = 0
				} else if h > 255 {
					h = 255
				}
				out[z*RegionSize+x] = byte(h)
				break
			}
		}
	}
	return out
}
