package meshpipe

import "time"

// HostKind enumerates host -> worker messages. Handler tables are indexed by it.
type HostKind int

const (
	KindSetWorldConfig HostKind = iota
	KindSetMeshingAssets
	KindLoadChunk
	KindUnloadChunk
	KindBlockEdit
	KindMarkDirty
	KindReset
	KindQueryHeightmap
	KindQueryCustomModel

	NumHostKinds
)

var hostKindNames = [NumHostKinds]string{
	"setWorldConfig",
	"setMeshingAssets",
	"loadChunk",
	"unloadChunk",
	"blockEdit",
	"markDirty",
	"reset",
	"queryHeightmap",
	"queryCustomModel",
}

func (k HostKind) String() string {
	if k < 0 || k >= NumHostKinds {
		return "unknown"
	}
	return hostKindNames[k]
}

// HostMessage is the closed set of messages a worker accepts.
type HostMessage interface {
	HostKind() HostKind
	hostMessage()
}

// WorldConfig describes the vertical extent and version of the streamed world.
type WorldConfig struct {
	Version string
	MinY    int
	Height  int
}

// MaxY is the exclusive upper bound of the world.
func (c WorldConfig) MaxY() int {
	return c.MinY + c.Height
}

// MesherConfig travels with every dirty mark so a worker always meshes with current settings.
type MesherConfig struct {
	SmoothLighting bool
	SkyLight       int
}

type SetWorldConfig struct {
	Config WorldConfig
}

type SetMeshingAssets struct {
	Assets *Assets
}

type LoadChunk struct {
	X, Z         int
	Data         []byte
	CustomModels map[BlockPos]string
}

type UnloadChunk struct {
	X, Z int
}

// BlockEdit updates one block in every mirror. An empty State leaves the block untouched and
// only replaces the chunk's custom model table.
type BlockEdit struct {
	Pos          BlockPos
	State        string
	CustomModels map[BlockPos]string
}

// MarkDirty asks a worker to remesh a region. Value=false clears pending work for the region.
type MarkDirty struct {
	Pos    BlockPos
	Value  bool
	Config MesherConfig
}

type Reset struct{}

type QueryHeightmap struct {
	X, Z int
}

type QueryCustomModel struct {
	Pos BlockPos
}

func (SetWorldConfig) HostKind() HostKind   { return KindSetWorldConfig }
func (SetMeshingAssets) HostKind() HostKind { return KindSetMeshingAssets }
func (LoadChunk) HostKind() HostKind        { return KindLoadChunk }
func (UnloadChunk) HostKind() HostKind      { return KindUnloadChunk }
func (BlockEdit) HostKind() HostKind        { return KindBlockEdit }
func (MarkDirty) HostKind() HostKind        { return KindMarkDirty }
func (Reset) HostKind() HostKind            { return KindReset }
func (QueryHeightmap) HostKind() HostKind   { return KindQueryHeightmap }
func (QueryCustomModel) HostKind() HostKind { return KindQueryCustomModel }

func (SetWorldConfig) hostMessage()   {}
func (SetMeshingAssets) hostMessage() {}
func (LoadChunk) hostMessage()        {}
func (UnloadChunk) hostMessage()      {}
func (BlockEdit) hostMessage()        {}
func (MarkDirty) hostMessage()        {}
func (Reset) hostMessage()            {}
func (QueryHeightmap) hostMessage()   {}
func (QueryCustomModel) hostMessage() {}

// WorkerKind enumerates worker -> host messages.
type WorkerKind int

const (
	KindGeometry WorkerKind = iota
	KindSectionFinished
	KindModelInfo
	KindHeightmap
	KindCustomModelResult

	NumWorkerKinds
)

var workerKindNames = [NumWorkerKinds]string{
	"geometry",
	"sectionFinished",
	"modelInfo",
	"heightmap",
	"customModelResult",
}

func (k WorkerKind) String() string {
	if k < 0 || k >= NumWorkerKinds {
		return "unknown"
	}
	return workerKindNames[k]
}

// WorkerMessage is the closed set of messages the host accepts.
type WorkerMessage interface {
	WorkerKind() WorkerKind
	workerMessage()
}

// GeometryResult hands a freshly built mesh to the host. The worker keeps no reference to it.
type GeometryResult struct {
	Key      RegionKey
	Geometry *Geometry
	WorkerID int
}

type SectionFinished struct {
	Key         RegionKey
	WorkerID    int
	ProcessTime time.Duration
}

// ModelInfo carries block state -> resolved model entries discovered while meshing.
type ModelInfo struct {
	Entries  map[string]string
	WorkerID int
}

type Heightmap struct {
	Key      ChunkKey
	Heights  [RegionSize * RegionSize]byte
	WorkerID int
}

type CustomModelResult struct {
	ChunkKey ChunkKey
	Pos      BlockPos
	Model    string
	WorkerID int
}

func (GeometryResult) WorkerKind() WorkerKind    { return KindGeometry }
func (SectionFinished) WorkerKind() WorkerKind   { return KindSectionFinished }
func (ModelInfo) WorkerKind() WorkerKind         { return KindModelInfo }
func (Heightmap) WorkerKind() WorkerKind         { return KindHeightmap }
func (CustomModelResult) WorkerKind() WorkerKind { return KindCustomModelResult }

func (GeometryResult) workerMessage()    {}
func (SectionFinished) workerMessage()   {}
func (ModelInfo) workerMessage()         {}
func (Heightmap) workerMessage()         {}
func (CustomModelResult) workerMessage() {}
