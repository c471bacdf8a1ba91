package meshpipe

import (
	"image"
	"image/color"
	"math"
	"strings"
)

const colormapPrefix = "assets/minecraft/textures/colormap/"

type Biome struct {
	Temperature float64 `json:"temperature"`
	Downfall    float64 `json:"downfall"`
}

// Plains is the biome used for tinting, since columns carry no biome data to the mesher.
var Plains = Biome{Temperature: 0.8, Downfall: 0.4}

// ColorMapCoords locates the biome on a 256x256 grass or foliage colormap.
func (b Biome) ColorMapCoords() (int, int) {
	r := clamp(b.Downfall, 0, 1) * clamp(b.Temperature, 0, 1)
	x := int(math.Ceil(255 - (clamp(b.Temperature, 0, 1) * 255)))
	y := int(math.Ceil(255 - (r * 255)))
	return x, y
}

type Tint int

const (
	TintNone Tint = iota
	TintGrass
	TintFoliage
	numTints
)

var tintColormaps = [numTints]string{
	TintGrass:   "grass",
	TintFoliage: "foliage",
}

var grassBlocks = map[string]struct{}{
	"minecraft:grass":       {},
	"minecraft:grass_block": {},
	"minecraft:tall_grass":  {},
	"minecraft:vine":        {},
	"minecraft:fern":        {},
	"minecraft:large_fern":  {},
	"minecraft:sugar_cane":  {},
}

var foliageBlocks = map[string]struct{}{
	"minecraft:oak_leaves":      {},
	"minecraft:jungle_leaves":   {},
	"minecraft:acacia_leaves":   {},
	"minecraft:dark_oak_leaves": {},
	"minecraft:mangrove_leaves": {},
}

// TintOf reports which colormap a block's grayscale texture is multiplied with.
func TintOf(name string) Tint {
	if _, ok := grassBlocks[name]; ok {
		return TintGrass
	}
	if _, ok := foliageBlocks[name]; ok {
		return TintFoliage
	}
	return TintNone
}

// SampleColorMap picks the biome's color from a colormap of any size.
func SampleColorMap(img image.Image, b Biome) color.RGBA {
	bounds := img.Bounds()
	x, y := b.ColorMapCoords()
	x = x * bounds.Dx() / 256
	y = y * bounds.Dy() / 256
	return toRGBA(img.At(bounds.Min.X+x, bounds.Min.Y+y))
}

func multiply(c, tint color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8(uint16(c.R) * uint16(tint.R) / 255),
		G: uint8(uint16(c.G) * uint16(tint.G) / 255),
		B: uint8(uint16(c.B) * uint16(tint.B) / 255),
		A: c.A,
	}
}

func colormapName(file string) (string, bool) {
	if !strings.HasPrefix(file, colormapPrefix) || !strings.HasSuffix(file, ".png") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(file, colormapPrefix), ".png"), true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
