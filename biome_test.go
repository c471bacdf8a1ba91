package meshpipe

import (
	"image"
	"image/color"
	"testing"
)

func TestColorMapCoordsCorners(t *testing.T) {
	if x, y := (Biome{Temperature: 1, Downfall: 1}).ColorMapCoords(); x != 0 || y != 0 {
		t.Fatalf("hot and wet = %d,%d", x, y)
	}
	if x, y := (Biome{Temperature: 0, Downfall: 0}).ColorMapCoords(); x != 255 || y != 255 {
		t.Fatalf("cold and dry = %d,%d", x, y)
	}
	if x, y := (Biome{Temperature: 2, Downfall: -1}).ColorMapCoords(); x != 0 || y != 255 {
		t.Fatalf("out of range climate not clamped: %d,%d", x, y)
	}
}

func TestSampleColorMap(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	img.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	if got := SampleColorMap(img, Biome{Temperature: 1, Downfall: 1}); got != (color.RGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Fatalf("sampled %v", got)
	}
}

func TestResolveAppliesTint(t *testing.T) {
	assets := NewAssets("")
	assets.Set("minecraft:grass_block", "block/grass_block_top", color.RGBA{R: 255, G: 255, B: 255, A: 255})
	assets.Set("minecraft:stone", "block/stone", color.RGBA{R: 100, G: 100, B: 100, A: 255})

	clr, _, ok := assets.Resolve("minecraft:grass_block/snowy=false")
	if !ok || clr != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("untinted grass = %v, %v", clr, ok)
	}

	assets.SetTint(TintGrass, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	if clr, _, _ := assets.Resolve("minecraft:grass_block/snowy=false"); clr != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("tinted grass = %v", clr)
	}
	if clr, _, _ := assets.Resolve("minecraft:stone"); clr.R != 100 {
		t.Fatalf("stone was tinted: %v", clr)
	}
	if TintOf("minecraft:oak_leaves") != TintFoliage || TintOf("minecraft:stone") != TintNone {
		t.Fatalf("unexpected tint kinds")
	}
}

func TestResolveFallbackIsStable(t *testing.T) {
	assets := NewAssets("")
	a, _, ok := assets.Resolve("minecraft:unknown_block")
	if ok {
		t.Fatalf("unknown block resolved")
	}
	b, _, _ := assets.Resolve("minecraft:unknown_block/facing=north")
	if a != b {
		t.Fatalf("fallback color depends on properties: %v vs %v", a, b)
	}
}
