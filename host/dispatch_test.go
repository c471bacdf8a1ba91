package host

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/b1naryth1ef/meshpipe"
)

func TestNeighborOffsets(t *testing.T) {
	const s = meshpipe.RegionSize
	cases := []struct {
		name string
		pos  meshpipe.BlockPos
		ao   bool
		want []meshpipe.BlockPos
	}{
		{
			name: "interior",
			pos:  meshpipe.BlockPos{X: 5, Y: 5, Z: 5},
			ao:   true,
		},
		{
			name: "far corner without ao",
			pos:  meshpipe.BlockPos{X: 15, Y: 0, Z: 15},
			want: []meshpipe.BlockPos{{X: s}, {Y: -s}, {Z: s}},
		},
		{
			name: "origin with ao",
			pos:  meshpipe.BlockPos{},
			ao:   true,
			want: []meshpipe.BlockPos{
				{X: -s}, {Y: -s}, {Z: -s},
				{X: -s, Z: -s},
				{X: -s, Y: -s}, {Y: -s, Z: -s},
				{X: -s, Y: -s, Z: -s},
			},
		},
		{
			name: "top face never reaches diagonally up",
			pos:  meshpipe.BlockPos{X: 0, Y: 15, Z: 7},
			ao:   true,
			want: []meshpipe.BlockPos{{X: -s}, {Y: s}},
		},
		{
			name: "negative coordinates",
			pos:  meshpipe.BlockPos{X: -1, Y: -16, Z: -17},
			want: []meshpipe.BlockPos{{X: s}, {Y: -s}, {Z: s}},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NeighborOffsets(c.pos, c.ao)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Fatalf("offsets (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInView(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.ViewDistance = 1 })
	env.h.SetViewer(meshpipe.BlockPos{X: 8, Y: 300, Z: 8})

	inside := []meshpipe.BlockPos{{X: -16}, {X: 31, Z: 31}, {Y: -1000}}
	outside := []meshpipe.BlockPos{{X: -17}, {X: 32}, {Z: 40}}
	for _, p := range inside {
		if !env.h.InView(p) {
			t.Fatalf("%v not in view", p)
		}
	}
	for _, p := range outside {
		if env.h.InView(p) {
			t.Fatalf("%v in view", p)
		}
	}
}
