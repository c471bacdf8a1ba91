package meshpipe

import (
	"archive/zip"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"log"
	"path"
	"strings"

	"github.com/muesli/gamut"
)

const blockTexturePrefix = "assets/minecraft/textures/block/"

// Assets is the model/texture data a worker needs before it can mesh. It is read-only once
// built and may be shared by every worker.
type Assets struct {
	Version  string
	Colors   map[string]color.RGBA
	Textures map[string]string

	// Tints multiply grayscale textures; a zero entry leaves them untinted.
	Tints [numTints]color.RGBA

	fallback []color.RGBA
}

// NewAssets creates an empty asset table whose unknown blocks get a stable pastel color.
func NewAssets(version string) *Assets {
	a := &Assets{
		Version:  version,
		Colors:   make(map[string]color.RGBA),
		Textures: make(map[string]string),
	}

	colors, err := gamut.Generate(32, gamut.PastelGenerator{})
	if err != nil {
		log.Panicf("Failed to generate fallback block palette: %v", err)
	}
	for _, c := range colors {
		a.fallback = append(a.fallback, toRGBA(c))
	}
	return a
}

// Resolve returns the color and texture for a block state. ok is false when the block had to
// fall back to a generated color.
func (a *Assets) Resolve(state string) (clr color.RGBA, texture string, ok bool) {
	name := BlockName(state)
	if c, found := a.Colors[name]; found {
		if tint := a.Tints[TintOf(name)]; tint.A != 0 {
			c = multiply(c, tint)
		}
		return c, a.Textures[name], true
	}

	if len(a.fallback) == 0 {
		return color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}, "", false
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return a.fallback[int(h.Sum32()%uint32(len(a.fallback)))], "", false
}

// Set registers a block color directly.
func (a *Assets) Set(name, texture string, clr color.RGBA) {
	a.Colors[name] = clr
	a.Textures[name] = texture
}

// SetTint sets the colormap color for a tint kind.
func (a *Assets) SetTint(t Tint, clr color.RGBA) {
	if t == TintNone {
		return
	}
	a.Tints[t] = clr
}

// LoadAssetsFromClientJAR builds the asset table from the block textures of a client JAR. Each
// block gets the alpha weighted average color of its texture, preferring the "_top" variant.
// Grass and foliage are tinted from the JAR's colormaps at the plains biome.
func LoadAssetsFromClientJAR(jarPath, version string) (*Assets, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	files := make(map[string]*zip.File)
	colormaps := make(map[string]*zip.File)
	for _, f := range r.File {
		if name, ok := colormapName(f.Name); ok {
			colormaps[name] = f
			continue
		}
		if !strings.HasPrefix(f.Name, blockTexturePrefix) || !strings.HasSuffix(f.Name, ".png") {
			continue
		}
		files[strings.TrimSuffix(strings.TrimPrefix(f.Name, blockTexturePrefix), ".png")] = f
	}

	assets := NewAssets(version)
	for texture := range files {
		name, isTop := strings.CutSuffix(texture, "_top")
		if _, hasTop := files[name+"_top"]; hasTop && !isTop {
			continue
		}
		if strings.ContainsRune(name, '/') {
			continue
		}

		img, err := loadPNG(files[texture])
		if err != nil {
			log.Printf("[assets] skipping texture %s: %v", texture, err)
			continue
		}
		assets.Set("minecraft:"+name, path.Join("block", texture), averageColor(img))
	}

	if len(assets.Colors) == 0 {
		return nil, fmt.Errorf("no block textures found in %s", jarPath)
	}

	for t, name := range tintColormaps {
		f, ok := colormaps[name]
		if !ok {
			continue
		}
		img, err := loadPNG(f)
		if err != nil {
			log.Printf("[assets] skipping colormap %s: %v", name, err)
			continue
		}
		assets.SetTint(Tint(t), SampleColorMap(img, Plains))
	}
	return assets, nil
}

func loadPNG(file *zip.File) (image.Image, error) {
	fd, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	return png.Decode(fd)
}

func averageColor(texture image.Image) color.RGBA {
	bounds := texture.Bounds()
	var rr, gg, bb, aa, count float64
	for i := bounds.Min.X; i < bounds.Max.X; i++ {
		for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
			rrr, ggg, bbb, aaa := texture.At(i, j).RGBA()
			rr += float64(rrr) * float64(aaa)
			gg += float64(ggg) * float64(aaa)
			bb += float64(bbb) * float64(aaa)
			aa += float64(aaa)
			count++
		}
	}
	if aa == 0 {
		return color.RGBA{}
	}
	return color.RGBA{
		R: uint8(rr / aa / 257),
		G: uint8(gg / aa / 257),
		B: uint8(bb / aa / 257),
		A: uint8(aa / count / 257),
	}
}

func toRGBA(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}
