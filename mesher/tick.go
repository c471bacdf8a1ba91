package mesher

import (
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

// Tick meshes every dirty region once. A region with stacked marks is meshed a single time but
// acknowledged once per mark, and regions whose data is gone are acknowledged without geometry.
// It returns the number of regions meshed.
func (c *Context) Tick() int {
	if c.State < Ready || len(c.dirty) == 0 {
		return 0
	}

	order := c.order
	c.order = nil

	meshed := 0
	for _, key := range order {
		repeats, ok := c.dirty[key]
		if !ok {
			continue
		}
		delete(c.dirty, key)

		var processTime time.Duration
		if c.World != nil && c.World.HasRegion(key) {
			start := c.now()
			geometry := c.Mesher.Mesh(key, c.World, c.mesherConfig)
			processTime = c.now().Sub(start)
			c.collect(key, geometry)
			c.out(meshpipe.GeometryResult{Key: key, Geometry: geometry, WorkerID: c.ID})
			meshed++
		}

		for i := 0; i < repeats; i++ {
			c.ack(key, processTime)
			processTime = 0
		}
	}

	if len(c.newModels) > 0 {
		entries := c.newModels
		c.newModels = make(map[string]string)
		c.out(meshpipe.ModelInfo{Entries: entries, WorkerID: c.ID})
	}
	return meshed
}

func (c *Context) collect(key meshpipe.RegionKey, geometry *meshpipe.Geometry) {
	if geometry == nil {
		return
	}
	for _, warning := range geometry.Warnings {
		c.logf("region %s: %s", key, warning)
	}
	for state, model := range geometry.Models {
		if known, ok := c.knownModels[state]; ok && known == model {
			continue
		}
		c.knownModels[state] = model
		c.newModels[state] = model
	}
}
