package meshpipe

// ColumnPos is a block column inside the world, used to report the highest block per column.
type ColumnPos struct {
	X, Z int
}

// Geometry is the output of meshing one region. Ownership moves with the message carrying it.
type Geometry struct {
	Positions []float32
	Normals   []float32
	Colors    []float32
	UVs       []float32
	Indices   []uint32

	HighestBlocks map[ColumnPos]int
	BlockCount    int
	Signs         map[BlockPos]string
	Heads         map[BlockPos]string

	// Models maps block states to the model/texture they resolved to.
	Models map[string]string

	HadErrors bool
	Warnings  []string
}

// Mesher turns the blocks of one region into geometry. Implementations must be pure with
// respect to the BlockSource: same blocks in, same geometry out.
type Mesher interface {
	Mesh(key RegionKey, world BlockSource, config MesherConfig) *Geometry
}

// MesherFunc adapts a plain function to the Mesher interface.
type MesherFunc func(key RegionKey, world BlockSource, config MesherConfig) *Geometry

func (f MesherFunc) Mesh(key RegionKey, world BlockSource, config MesherConfig) *Geometry {
	return f(key, world, config)
}
