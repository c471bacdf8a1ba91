package meshpipe

import (
	"runtime"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

type Config struct {
	Workers      int                   `hcl:"workers,optional"`
	ViewDistance int                   `hcl:"view_distance,optional"`
	World        *WorldConfigBlock     `hcl:"world,block"`
	Meshing      *MeshingConfigBlock   `hcl:"meshing,block"`
	Inbound      *InboundConfigBlock   `hcl:"inbound,block"`
	Streaming    *StreamingConfigBlock `hcl:"streaming,block"`
	Replay       *ReplayConfigBlock    `hcl:"replay,block"`
	Overlay      *OverlayConfigBlock   `hcl:"overlay,block"`
}

type WorldConfigBlock struct {
	Path    string `hcl:"path,optional"`
	Version string `hcl:"version,optional"`
	MinY    int    `hcl:"min_y,optional"`
	Height  int    `hcl:"height,optional"`
}

type MeshingConfigBlock struct {
	TickMs               int    `hcl:"tick_ms,optional"`
	NeighborChunkUpdates *bool  `hcl:"neighbor_chunk_updates,optional"`
	SmoothLighting       bool   `hcl:"smooth_lighting,optional"`
	SkyLight             *int   `hcl:"sky_light,optional"`
	WorkerBurst          int    `hcl:"worker_burst,optional"`
	ClientJAR            string `hcl:"client_jar,optional"`
	DownloadJAR          bool   `hcl:"download_jar,optional"`
	JARCache             string `hcl:"jar_cache,optional"`
}

type InboundConfigBlock struct {
	BudgetMs  int   `hcl:"budget_ms,optional"`
	Smoothing *bool `hcl:"smoothing,optional"`
	FrameHz   int   `hcl:"frame_hz,optional"`
}

type StreamingConfigBlock struct {
	DebounceMs int `hcl:"debounce_ms,optional"`
}

type ReplayConfigBlock struct {
	Record string `hcl:"record,optional"`
}

type OverlayConfigBlock struct {
	Listen     string `hcl:"listen,optional"`
	IntervalMs int    `hcl:"interval_ms,optional"`
}

func newHCLEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"cpus": cty.NumberIntVal(int64(runtime.NumCPU())),
		},
		Functions: map[string]function.Function{
			"max": stdlib.MaxFunc,
			"min": stdlib.MinFunc,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	evalCtx := newHCLEvalContext()
	err := hclsimple.DecodeFile(path, evalCtx, &cfg)
	if err != nil {
		return nil, err
	}
	return cfg.WithDefaults(), nil
}

// DefaultConfig is what an empty config file decodes to.
func DefaultConfig() *Config {
	var cfg Config
	return cfg.WithDefaults()
}

// WithDefaults fills every unset field and returns the config for chaining.
func (c *Config) WithDefaults() *Config {
	if c.Workers <= 0 {
		c.Workers = max(runtime.NumCPU()-1, 1)
	}
	if c.ViewDistance <= 0 {
		c.ViewDistance = 8
	}
	if c.World == nil {
		c.World = &WorldConfigBlock{}
	}
	if c.World.Height <= 0 {
		c.World.MinY = -64
		c.World.Height = 384
	}
	if c.Meshing == nil {
		c.Meshing = &MeshingConfigBlock{}
	}
	if c.Meshing.TickMs <= 0 {
		c.Meshing.TickMs = 50
	}
	if c.Meshing.NeighborChunkUpdates == nil {
		c.Meshing.NeighborChunkUpdates = boolPtr(true)
	}
	if c.Meshing.SkyLight == nil {
		v := 15
		c.Meshing.SkyLight = &v
	}
	if c.Meshing.WorkerBurst <= 0 {
		c.Meshing.WorkerBurst = 100
	}
	if c.Meshing.JARCache == "" {
		c.Meshing.JARCache = "jars"
	}
	if c.Inbound == nil {
		c.Inbound = &InboundConfigBlock{}
	}
	if c.Inbound.BudgetMs <= 0 {
		c.Inbound.BudgetMs = 30
	}
	if c.Inbound.Smoothing == nil {
		c.Inbound.Smoothing = boolPtr(true)
	}
	if c.Inbound.FrameHz <= 0 {
		c.Inbound.FrameHz = 60
	}
	if c.Streaming == nil {
		c.Streaming = &StreamingConfigBlock{}
	}
	if c.Streaming.DebounceMs <= 0 {
		c.Streaming.DebounceMs = 20
	}
	if c.Replay == nil {
		c.Replay = &ReplayConfigBlock{}
	}
	if c.Overlay == nil {
		c.Overlay = &OverlayConfigBlock{}
	}
	if c.Overlay.IntervalMs <= 0 {
		c.Overlay.IntervalMs = 500
	}
	return c
}

func (c *Config) WorldConfig() WorldConfig {
	return WorldConfig{
		Version: c.World.Version,
		MinY:    c.World.MinY,
		Height:  c.World.Height,
	}
}

func (c *Config) MesherConfig() MesherConfig {
	return MesherConfig{
		SmoothLighting: c.Meshing.SmoothLighting,
		SkyLight:       *c.Meshing.SkyLight,
	}
}

func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.Meshing.TickMs) * time.Millisecond
}

func (c *Config) DrainBudget() time.Duration {
	return time.Duration(c.Inbound.BudgetMs) * time.Millisecond
}

func (c *Config) FramePeriod() time.Duration {
	return time.Second / time.Duration(c.Inbound.FrameHz)
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Streaming.DebounceMs) * time.Millisecond
}

func boolPtr(v bool) *bool {
	return &v
}
