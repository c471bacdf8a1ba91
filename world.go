package meshpipe

import "maps"

// BlockSource is the read side of a world mirror, as seen by a Mesher.
type BlockSource interface {
	BlockState(p BlockPos) (string, bool)
	CustomModel(p BlockPos) string
}

// World is a worker-local mirror of the streamed world: decoded columns plus per-chunk custom
// model overrides. It is owned by exactly one goroutine.
type World struct {
	Config WorldConfig

	columns      map[ChunkKey]*Column
	customModels map[ChunkKey]map[BlockPos]string
}

func NewWorld(config WorldConfig) *World {
	return &World{
		Config:       config,
		columns:      make(map[ChunkKey]*Column),
		customModels: make(map[ChunkKey]map[BlockPos]string),
	}
}

func (w *World) GetColumn(x, z int) *Column {
	return w.columns[ChunkKey{X: Snap(x), Z: Snap(z)}]
}

func (w *World) AddColumn(c *Column) {
	w.columns[ChunkKey{X: c.X, Z: c.Z}] = c
}

// RemoveColumn drops the column and its custom models, returning the remaining column count.
func (w *World) RemoveColumn(x, z int) int {
	key := ChunkKey{X: Snap(x), Z: Snap(z)}
	delete(w.columns, key)
	delete(w.customModels, key)
	return len(w.columns)
}

func (w *World) ColumnCount() int {
	return len(w.columns)
}

// HasRegion reports whether block data backing the region is resident.
func (w *World) HasRegion(k RegionKey) bool {
	c := w.columns[k.Chunk()]
	if c == nil {
		return false
	}
	return c.Section(k.Y) != nil
}

func (w *World) BlockState(p BlockPos) (string, bool) {
	c := w.GetColumn(p.X, p.Z)
	if c == nil {
		return "", false
	}
	if c.Section(p.Y) == nil {
		return AirState, true
	}
	return c.Block(p.X, p.Y, p.Z), true
}

func (w *World) SetBlockState(p BlockPos, state string) bool {
	c := w.GetColumn(p.X, p.Z)
	if c == nil {
		return false
	}
	return c.SetBlock(p.X, p.Y, p.Z, state)
}

// SetCustomModels replaces the override table of a chunk. A nil table clears it.
func (w *World) SetCustomModels(key ChunkKey, models map[BlockPos]string) {
	if len(models) == 0 {
		delete(w.customModels, key)
		return
	}
	w.customModels[key] = maps.Clone(models)
}

func (w *World) CustomModel(p BlockPos) string {
	return w.customModels[ChunkKeyOf(p)][p]
}

// Heightmap scans the column at (x, z). ok is false when the column is not resident.
func (w *World) Heightmap(x, z int) (heights [RegionSize * RegionSize]byte, ok bool) {
	c := w.GetColumn(x, z)
	if c == nil {
		return heights, false
	}
	return c.Heightmap(w.Config.MinY), true
}
