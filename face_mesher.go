package meshpipe

import (
	"fmt"
	"strings"
)

type face struct {
	dir     [3]int
	corners [4][3]float32
	shade   float32
}

var cubeFaces = [6]face{
	{dir: [3]int{0, 1, 0}, corners: [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}, shade: 1.0},
	{dir: [3]int{0, -1, 0}, corners: [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}, shade: 0.5},
	{dir: [3]int{1, 0, 0}, corners: [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}, shade: 0.6},
	{dir: [3]int{-1, 0, 0}, corners: [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}, shade: 0.6},
	{dir: [3]int{0, 0, 1}, corners: [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}, shade: 0.8},
	{dir: [3]int{0, 0, -1}, corners: [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}, shade: 0.8},
}

var quadUVs = [8]float32{0, 0, 1, 0, 1, 1, 0, 1}

// FaceMesher emits one colored quad for every block face that touches air. It is the reference
// Mesher used by the CLI; real clients plug in their own model-aware implementation.
type FaceMesher struct {
	assets *Assets
}

func NewFaceMesher(assets *Assets) *FaceMesher {
	return &FaceMesher{assets: assets}
}

func (m *FaceMesher) Mesh(key RegionKey, world BlockSource, config MesherConfig) *Geometry {
	g := &Geometry{
		HighestBlocks: make(map[ColumnPos]int),
		Signs:         make(map[BlockPos]string),
		Heads:         make(map[BlockPos]string),
		Models:        make(map[string]string),
	}
	missing := make(map[string]struct{})

	light := float32(0.3 + 0.7*float64(min(max(config.SkyLight, 0), 15))/15)

	for y := 0; y < RegionSize; y++ {
		for z := 0; z < RegionSize; z++ {
			for x := 0; x < RegionSize; x++ {
				pos := BlockPos{X: key.X + x, Y: key.Y + y, Z: key.Z + z}
				state, ok := world.BlockState(pos)
				if !ok || IsAir(state) {
					continue
				}

				g.BlockCount++
				col := ColumnPos{X: pos.X, Z: pos.Z}
				if h, seen := g.HighestBlocks[col]; !seen || pos.Y > h {
					g.HighestBlocks[col] = pos.Y
				}

				name := BlockName(state)
				if strings.HasSuffix(name, "_sign") {
					g.Signs[pos] = state
				} else if strings.HasSuffix(name, "_head") || strings.HasSuffix(name, "_skull") {
					g.Heads[pos] = state
				}

				clr, texture, resolved := m.assets.Resolve(state)
				if custom := world.CustomModel(pos); custom != "" {
					texture = custom
				}
				if !resolved {
					if _, warned := missing[name]; !warned {
						missing[name] = struct{}{}
						g.HadErrors = true
						g.Warnings = append(g.Warnings, fmt.Sprintf("missing block state model: %s", name))
					}
				} else {
					g.Models[state] = texture
				}

				for _, f := range cubeFaces {
					neighbour, ok := world.BlockState(pos.Offset(f.dir[0], f.dir[1], f.dir[2]))
					if ok && !IsAir(neighbour) {
						continue
					}
					m.appendQuad(g, x, y, z, f, clr.R, clr.G, clr.B, light)
				}
			}
		}
	}
	return g
}

func (m *FaceMesher) appendQuad(g *Geometry, x, y, z int, f face, r, gr, b uint8, light float32) {
	base := uint32(len(g.Positions) / 3)
	shade := f.shade * light
	for i, c := range f.corners {
		g.Positions = append(g.Positions, float32(x)+c[0], float32(y)+c[1], float32(z)+c[2])
		g.Normals = append(g.Normals, float32(f.dir[0]), float32(f.dir[1]), float32(f.dir[2]))
		g.Colors = append(g.Colors,
			float32(r)/255*shade,
			float32(gr)/255*shade,
			float32(b)/255*shade,
		)
		g.UVs = append(g.UVs, quadUVs[i*2], quadUVs[i*2+1])
	}
	g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
}
