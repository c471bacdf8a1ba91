package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/b1naryth1ef/meshpipe"
	"github.com/b1naryth1ef/meshpipe/dl"
	"github.com/b1naryth1ef/meshpipe/host"
	"github.com/b1naryth1ef/meshpipe/overlay"
	"github.com/b1naryth1ef/meshpipe/replay"
)

func main() {
	configFlag := &cli.PathFlag{
		Name:  "config",
		Usage: "path to the configuration file",
		Value: "config.hcl",
	}

	app := &cli.App{
		Name:        "meshpipe",
		Description: "streams minecraft world columns through a pool of meshing workers",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "mesh every chunk within the view distance of a point",
				Action: commandRun,
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{Name: "x", Usage: "viewer block x"},
					&cli.IntFlag{Name: "y", Usage: "viewer block y", Value: 64},
					&cli.IntFlag{Name: "z", Usage: "viewer block z"},
					&cli.PathFlag{
						Name:  "record",
						Usage: "write a replay log to this path (overrides replay.record)",
					},
					&cli.StringFlag{
						Name:  "overlay",
						Usage: "serve the stats overlay on this address (overrides overlay.listen)",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "give up if meshing has not finished after this long",
						Value: 5 * time.Minute,
					},
				},
			},
			{
				Name:      "replay",
				Usage:     "replay a captured log against a live worker pool",
				ArgsUsage: "<log.jsonl.zst>",
				Action:    commandReplay,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "overlay",
						Usage: "serve the stats overlay on this address",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "give up if the replay has not finished after this long",
						Value: 10 * time.Minute,
					},
				},
			},
			{
				Name:   "assets",
				Usage:  "print the block color table built from the client jar",
				Action: commandAssets,
				Flags: []cli.Flag{
					configFlag,
					&cli.PathFlag{
						Name:  "jar",
						Usage: "path to the client jar (overrides meshing.client_jar)",
					},
					&cli.BoolFlag{
						Name:  "download",
						Usage: "download the client jar for world.version when none is configured",
					},
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func loadConfig(ctx *cli.Context) (*meshpipe.Config, error) {
	path := ctx.Path("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !ctx.IsSet("config") {
		log.Printf("[meshpipe] %s not found, using defaults", path)
		return meshpipe.DefaultConfig(), nil
	}
	config, err := meshpipe.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if config.World.Version == "" && config.World.Path != "" {
		version, err := meshpipe.ReadWorldVersion(config.World.Path)
		if err != nil {
			log.Printf("[meshpipe] failed to read world version: %v", err)
		} else {
			config.World.Version = version
		}
	}
	return config, nil
}

func loadAssets(ctx context.Context, config *meshpipe.Config, jar string) (*meshpipe.Assets, error) {
	if jar == "" {
		jar = config.Meshing.ClientJAR
	}
	if jar == "" && config.Meshing.DownloadJAR {
		path, err := dl.NewClient().FetchClientJAR(ctx, config.World.Version, config.Meshing.JARCache)
		if err != nil {
			return nil, err
		}
		log.Printf("[meshpipe] using client jar %s", path)
		jar = path
	}
	if jar == "" {
		log.Printf("[meshpipe] no client jar configured, using generated block colors")
		return meshpipe.NewAssets(config.World.Version), nil
	}
	return meshpipe.LoadAssetsFromClientJAR(jar, config.World.Version)
}

func regionSource(config *meshpipe.Config) (*meshpipe.RegionSource, error) {
	if config.World.Path == "" {
		return nil, errors.New("world.path is not configured")
	}
	return meshpipe.NewRegionSource(filepath.Join(config.World.Path, "region")), nil
}

// geometryCounter stands in for a renderer.
type geometryCounter struct {
	meshes   atomic.Uint64
	vertices atomic.Uint64
}

func (g *geometryCounter) Accept(key meshpipe.RegionKey, geometry *meshpipe.Geometry, worker int) {
	g.meshes.Add(1)
	g.vertices.Add(uint64(len(geometry.Positions) / 3))
}

// startHost runs h until ctx is done, with the overlay alongside when listen is set. The
// returned function stops both and waits for them.
func startHost(ctx context.Context, h *host.Host, config *meshpipe.Config, listen string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[meshpipe] host stopped: %v", err)
		}
	}()

	if listen != "" {
		srv := overlay.NewServer(overlay.HostStats(h), time.Duration(config.Overlay.IntervalMs)*time.Millisecond, nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, listen); err != nil {
				log.Printf("[meshpipe] overlay stopped: %v", err)
			}
		}()
	}

	return ctx, func() {
		cancel()
		wg.Wait()
	}
}

func commandRun(ctx *cli.Context) error {
	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	assets, err := loadAssets(ctx.Context, config, "")
	if err != nil {
		return err
	}
	source, err := regionSource(config)
	if err != nil {
		return err
	}
	defer source.Close()

	counter := &geometryCounter{}
	opts := host.OptionsFromConfig(config, assets)
	opts.Source = source
	opts.Renderer = counter

	h := host.New(opts)
	viewer := meshpipe.BlockPos{X: ctx.Int("x"), Y: ctx.Int("y"), Z: ctx.Int("z")}
	h.SetViewer(viewer)
	h.InitWorkers(config.Workers)

	recordPath := config.Replay.Record
	if ctx.IsSet("record") {
		recordPath = ctx.Path("record")
	}
	if recordPath != "" {
		recorder, err := replay.NewRecorder(recordPath, config.WorldConfig(), h.WorkerCount())
		if err != nil {
			return err
		}
		recorder.Attach(h)
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Printf("[meshpipe] failed to close replay log: %v", err)
			}
		}()
		log.Printf("[meshpipe] recording session %s to %s", recorder.Session(), recordPath)
	}

	finished := make(chan struct{})
	var once sync.Once
	h.Events().OnAllFinished(func() {
		once.Do(func() { close(finished) })
	})

	chunks := source.ChunksAround(viewer, config.ViewDistance)
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks within %d of %v", config.ViewDistance, viewer)
	}
	for _, key := range chunks {
		h.QueueChunk(key, nil)
	}
	log.Printf("[meshpipe] queued %d chunks around %v", len(chunks), viewer)

	listen := config.Overlay.Listen
	if ctx.IsSet("overlay") {
		listen = ctx.String("overlay")
	}
	sigCtx, stopSignals := signal.NotifyContext(ctx.Context, os.Interrupt)
	defer stopSignals()
	runCtx, stop := startHost(sigCtx, h, config, listen)

	var waitErr error
	select {
	case <-finished:
	case <-time.After(ctx.Duration("timeout")):
		waitErr = errors.New("timed out waiting for meshing to finish")
	case <-runCtx.Done():
		waitErr = runCtx.Err()
	}

	statsCtx, cancel := context.WithTimeout(runCtx, time.Second)
	stats, err := overlay.HostStats(h)(statsCtx)
	cancel()
	stop()
	if err == nil {
		printStats(stats, counter)
	}
	return waitErr
}

func commandReplay(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("expected exactly one replay log")
	}
	replayLog, err := replay.ReadLog(ctx.Args().First())
	if err != nil {
		return err
	}
	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if replayLog.World.Height > 0 {
		config.World.MinY = replayLog.World.MinY
		config.World.Height = replayLog.World.Height
		config.World.Version = replayLog.World.Version
	}
	if replayLog.Workers > 1 {
		config.Workers = replayLog.Workers - 1
	}

	assets, err := loadAssets(ctx.Context, config, "")
	if err != nil {
		return err
	}
	source, err := regionSource(config)
	if err != nil {
		return err
	}
	defer source.Close()

	counter := &geometryCounter{}
	opts := host.OptionsFromConfig(config, assets)
	opts.Source = source
	opts.Renderer = counter
	// every recorded mark has to reach a worker again
	opts.ViewDistance = 1 << 20

	h := host.New(opts)
	h.InitWorkers(config.Workers)

	sigCtx, stopSignals := signal.NotifyContext(ctx.Context, os.Interrupt)
	defer stopSignals()
	runCtx, stop := startHost(sigCtx, h, config, ctx.String("overlay"))
	defer stop()

	replayCtx, cancel := context.WithTimeout(runCtx, ctx.Duration("timeout"))
	defer cancel()

	session := replay.NewSession(replayLog, nil)
	started := time.Now()
	err = session.Run(replayCtx, replay.HostTarget{Host: h, Source: source})
	log.Printf("[meshpipe] replayed %d events in %v", session.Applied(), time.Since(started))
	if err != nil {
		return err
	}

	stats, err := overlay.HostStats(h)(replayCtx)
	if err != nil {
		return err
	}
	printStats(stats, counter)
	return nil
}

func commandAssets(ctx *cli.Context) error {
	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.Bool("download") {
		config.Meshing.DownloadJAR = true
	}
	assets, err := loadAssets(ctx.Context, config, ctx.Path("jar"))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(assets.Colors))
	for name := range assets.Colors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := assets.Colors[name]
		fmt.Printf("%-48s #%02x%02x%02x %s\n", name, c.R, c.G, c.B, assets.Textures[name])
	}
	log.Printf("[meshpipe] %d blocks", len(names))
	return nil
}

func printStats(stats host.Stats, counter *geometryCounter) {
	log.Printf("[meshpipe] chunks %d/%d finished, %d regions, %.0f%%",
		stats.FinishedChunks, stats.LoadedChunks, stats.FinishedRegions, stats.Progress()*100)
	log.Printf("[meshpipe] dispatched %d, acked %d, %d flushes, %d drain yields",
		stats.Dispatched, stats.Acked, stats.Flushes, stats.DrainYields)
	log.Printf("[meshpipe] %d meshes, %d vertices, %d blocks, load took %v",
		counter.meshes.Load(), counter.vertices.Load(), stats.BlockCount, stats.ChunkLoadTime)
	for i, ws := range stats.Workers {
		log.Printf("[meshpipe] worker %d: dispatched %d, acked %d, meshed %d, busy %v",
			i, ws.Dispatched, ws.Acked, ws.Meshed, ws.ProcessTime)
	}
	for _, w := range stats.Warnings {
		log.Printf("[meshpipe] warning: %s", w)
	}
}
