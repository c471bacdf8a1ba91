package meshpipe

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Tnze/go-mc/save"
	"github.com/Tnze/go-mc/save/region"
)

var ErrChunkMissing = errors.New("chunk not present")

// ChunkSource supplies raw column data for the streaming lifecycle and for replays.
type ChunkSource interface {
	ReadChunk(key ChunkKey) ([]byte, error)
}

type regionCoord struct {
	X, Z int
}

// RegionSource reads chunks straight out of the region (.mca) files of a world save.
type RegionSource struct {
	sync.Mutex

	dir     string
	regions map[regionCoord]*region.Region
}

func NewRegionSource(dir string) *RegionSource {
	return &RegionSource{
		dir:     dir,
		regions: make(map[regionCoord]*region.Region),
	}
}

func (s *RegionSource) region(crd regionCoord) (*region.Region, error) {
	if reg, ok := s.regions[crd]; ok {
		return reg, nil
	}
	reg, err := region.Open(filepath.Join(s.dir, fmt.Sprintf("r.%d.%d.mca", crd.X, crd.Z)))
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, io.EOF) {
		s.regions[crd] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.regions[crd] = reg
	return reg, nil
}

// ReadChunk returns the compressed sector holding the column at key.
func (s *RegionSource) ReadChunk(key ChunkKey) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	cx, cz := FloorDiv(key.X, RegionSize), FloorDiv(key.Z, RegionSize)
	reg, err := s.region(regionCoord{X: FloorDiv(cx, 32), Z: FloorDiv(cz, 32)})
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrChunkMissing
	}

	sector, err := reg.ReadSector(Mod(cx, 32), Mod(cz, 32))
	if errors.Is(err, region.ErrNoSector) {
		return nil, ErrChunkMissing
	}
	if err != nil {
		return nil, err
	}
	if len(sector) == 0 {
		return nil, fmt.Errorf("sector %v is out of bounds", key)
	}
	return sector, nil
}

// ChunksAround lists the present chunks within radius (in chunks) of center, nearest first.
func (s *RegionSource) ChunksAround(center BlockPos, radius int) []ChunkKey {
	origin := ChunkKeyOf(center)
	var out []ChunkKey
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			key := ChunkKey{X: origin.X + dx*RegionSize, Z: origin.Z + dz*RegionSize}
			if s.has(key) {
				out = append(out, key)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return chunkDistance(origin, out[i]) < chunkDistance(origin, out[j])
	})
	return out
}

func (s *RegionSource) has(key ChunkKey) bool {
	s.Lock()
	defer s.Unlock()

	cx, cz := FloorDiv(key.X, RegionSize), FloorDiv(key.Z, RegionSize)
	reg, err := s.region(regionCoord{X: FloorDiv(cx, 32), Z: FloorDiv(cz, 32)})
	if err != nil {
		log.Printf("[source] failed to open region for %v: %v", key, err)
		return false
	}
	if reg == nil {
		return false
	}
	return reg.Timestamps[Mod(cz, 32)][Mod(cx, 32)] != 0
}

func (s *RegionSource) Close() {
	s.Lock()
	defer s.Unlock()
	for crd, reg := range s.regions {
		if reg != nil {
			reg.Close()
		}
		delete(s.regions, crd)
	}
}

func chunkDistance(a, b ChunkKey) int {
	dx := FloorDiv(a.X-b.X, RegionSize)
	dz := FloorDiv(a.Z-b.Z, RegionSize)
	return dx*dx + dz*dz
}

// ReadWorldVersion returns the game version recorded in a save's level.dat.
func ReadWorldVersion(worldPath string) (string, error) {
	fd, err := os.Open(filepath.Join(worldPath, "level.dat"))
	if err != nil {
		return "", err
	}
	defer fd.Close()

	r, err := gzip.NewReader(fd)
	if err != nil {
		return "", err
	}

	level, err := save.ReadLevel(r)
	if err != nil {
		return "", err
	}
	return level.Data.Version.Name, nil
}
