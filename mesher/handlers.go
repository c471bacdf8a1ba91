package mesher

import (
	"github.com/b1naryth1ef/meshpipe"
)

type handler func(c *Context, msg meshpipe.HostMessage)

var handlers = [meshpipe.NumHostKinds]handler{
	meshpipe.KindSetWorldConfig:   handleSetWorldConfig,
	meshpipe.KindSetMeshingAssets: handleSetMeshingAssets,
	meshpipe.KindLoadChunk:        handleLoadChunk,
	meshpipe.KindUnloadChunk:      handleUnloadChunk,
	meshpipe.KindBlockEdit:        handleBlockEdit,
	meshpipe.KindMarkDirty:        handleMarkDirty,
	meshpipe.KindReset:            handleReset,
	meshpipe.KindQueryHeightmap:   handleQueryHeightmap,
	meshpipe.KindQueryCustomModel: handleQueryCustomModel,
}

func handleSetWorldConfig(c *Context, msg meshpipe.HostMessage) {
	m := msg.(meshpipe.SetWorldConfig)
	c.Config = m.Config
	c.World = meshpipe.NewWorld(m.Config)

	if c.Mesher != nil {
		c.State = Ready
	} else {
		c.State = Configured
	}
}

func handleSetMeshingAssets(c *Context, msg meshpipe.HostMessage) {
	m := msg.(meshpipe.SetMeshingAssets)
	c.Assets = m.Assets
	c.Mesher = c.newMesher(m.Assets)
	clear(c.knownModels)

	if c.State == Configured {
		c.State = Ready
	}
}

func handleLoadChunk(c *Context, msg meshpipe.HostMessage) {
	m := msg.(meshpipe.LoadChunk)
	if c.World == nil {
		c.logf("dropping chunk %d,%d received before world config", m.X, m.Z)
		return
	}

	column, err := c.decode(m.Data)
	if err != nil {
		c.logf("failed to decode chunk %d,%d: %v", m.X, m.Z, err)
		return
	}
	column.X, column.Z = meshpipe.Snap(m.X), meshpipe.Snap(m.Z)

	c.World.AddColumn(column)
	c.World.SetCustomModels(meshpipe.ChunkKey{X: column.X, Z: column.Z}, m.CustomModels)
	c.activate()
}

func handleUnloadChunk(c *Context, msg meshpipe.HostMessage) {
	m := msg.(meshpipe.UnloadChunk)
	if c.World == nil {
		return
	}
	if c.World.RemoveColumn(m.X, m.Z) == 0 {
		c.softCleanup()
	}
}

func handleBlockEdit(c *Context, msg meshpipe.HostMessage) {
	m := msg.(meshpipe.BlockEdit)
	if c.World == nil {
		return
	}
	if m.State != "" {
		c.World.SetBlockState(m.Pos, m.State)
	}
	c.World.SetCustomModels(meshpipe.ChunkKeyOf(m.Pos), m.CustomModels)
	c.activate()
}

// handleMarkDirty stacks a remesh request. Every request is answered by exactly one ack, either
// from the tick or right here when there is nothing to mesh.
func handleMarkDirty(c *Context, msg meshpipe.HostMessage) {
	m := msg.(meshpipe.MarkDirty)
	key := meshpipe.RegionKeyOf(m.Pos)
	c.mesherConfig = m.Config

	if !m.Value {
		n := c.clearDirty(key)
		for i := 0; i <= n; i++ {
			c.ack(key, 0)
		}
		return
	}

	if c.World == nil || !c.World.HasRegion(key) {
		c.ack(key, 0)
		return
	}
	c.markDirty(key)
	c.activate()
}

func handleReset(c *Context, msg meshpipe.HostMessage) {
	for _, key := range c.order {
		n := c.clearDirty(key)
		for i := 0; i < n; i++ {
			c.ack(key, 0)
		}
	}
	c.order = nil
	clear(c.newModels)
	if c.World != nil {
		c.softCleanup()
	}
	if c.State == Active {
		c.State = Ready
	}
}

func handleQueryHeightmap(c *Context, msg meshpipe.HostMessage) {
	m := msg.(meshpipe.QueryHeightmap)
	if c.World == nil {
		return
	}
	heights, ok := c.World.Heightmap(m.X, m.Z)
	if !ok {
		c.logf("heightmap requested for missing column %d,%d", m.X, m.Z)
		return
	}
	c.out(meshpipe.Heightmap{
		Key:      meshpipe.ChunkKey{X: meshpipe.Snap(m.X), Z: meshpipe.Snap(m.Z)},
		Heights:  heights,
		WorkerID: c.ID,
	})
}

func handleQueryCustomModel(c *Context, msg meshpipe.HostMessage) {
	m := msg.(meshpipe.QueryCustomModel)
	result := meshpipe.CustomModelResult{
		ChunkKey: meshpipe.ChunkKeyOf(m.Pos),
		Pos:      m.Pos,
		WorkerID: c.ID,
	}
	if c.World != nil {
		result.Model = c.World.CustomModel(m.Pos)
	}
	c.out(result)
}

func (c *Context) activate() {
	if c.State == Ready {
		c.State = Active
	}
}
