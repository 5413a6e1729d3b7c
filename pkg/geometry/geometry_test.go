package geometry_test

import (
	"testing"

	"lintang/runpathx/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	line := orb.LineString{{0, 0}, {1, 0}}

	tests := []struct {
		name   string
		geom   orb.Geometry
		want   orb.LineString
		usable bool
	}{
		{
			name:   "line string",
			geom:   line,
			want:   line,
			usable: true,
		},
		{
			name:   "ring becomes open line",
			geom:   orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}},
			want:   orb.LineString{{0, 0}, {1, 0}, {1, 1}, {0, 0}},
			usable: true,
		},
		{
			name:   "multi line merges into one",
			geom:   orb.MultiLineString{{{0, 0}, {1, 0}}, {{2, 0}, {1, 0}}},
			want:   orb.LineString{{0, 0}, {1, 0}, {2, 0}},
			usable: true,
		},
		{
			name:   "disjoint multi line uses longest part",
			geom:   orb.MultiLineString{{{0, 0}, {1, 0}}, {{5, 5}, {5, 8}}},
			want:   orb.LineString{{5, 5}, {5, 8}},
			usable: true,
		},
		{
			name:   "collection uses longest line member",
			geom:   orb.Collection{orb.Point{3, 3}, orb.LineString{{0, 0}, {0, 1}}, orb.LineString{{0, 0}, {0, 4}}},
			want:   orb.LineString{{0, 0}, {0, 4}},
			usable: true,
		},
		{
			name:   "collection without lines",
			geom:   orb.Collection{orb.Point{3, 3}},
			usable: false,
		},
		{
			name:   "empty collection",
			geom:   orb.Collection{},
			usable: false,
		},
		{
			name:   "polygon",
			geom:   orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
			usable: false,
		},
		{
			name:   "point",
			geom:   orb.Point{1, 1},
			usable: false,
		},
		{
			name:   "nil",
			geom:   nil,
			usable: false,
		},
		{
			name:   "single vertex line",
			geom:   orb.LineString{{1, 1}},
			usable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := geometry.Normalize(tt.geom)
			assert.Equal(t, tt.usable, ok)
			if tt.usable {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLineMergeKeepsBranches(t *testing.T) {
	// three parts meeting in one point cannot be merged into a single line
	mls := orb.MultiLineString{
		{{0, 0}, {1, 0}},
		{{1, 0}, {2, 0}},
		{{1, 0}, {1, 1}},
	}
	assert.Len(t, geometry.LineMerge(mls), 3)
}

func TestIsZeroLength(t *testing.T) {
	assert.True(t, geometry.IsZeroLength(orb.LineString{{1, 1}, {1, 1}}))
	assert.False(t, geometry.IsZeroLength(orb.LineString{{1, 1}, {1, 2}}))
}

func TestProjectOntoCurve(t *testing.T) {
	ls := orb.LineString{{4.9000, 52.3700}, {4.9010, 52.3700}}

	got := geometry.ProjectOntoCurve(ls, orb.Point{4.9005, 52.3703})
	assert.InDelta(t, 4.9005, got.Lon(), 1e-6)
	assert.InDelta(t, 52.3700, got.Lat(), 1e-6)

	t.Run("beyond the end clamps to the last vertex", func(t *testing.T) {
		got := geometry.ProjectOntoCurve(ls, orb.Point{4.9020, 52.3700})
		assert.InDelta(t, 4.9010, got.Lon(), 1e-9)
		assert.InDelta(t, 52.3700, got.Lat(), 1e-9)
	})
}

func TestIntersects(t *testing.T) {
	a := orb.Point{4.9000, 52.3700}
	b := orb.Point{4.9010, 52.3700}

	t.Run("crossing road", func(t *testing.T) {
		road := orb.LineString{{4.9005, 52.3695}, {4.9005, 52.3705}}
		assert.True(t, geometry.Intersects(a, b, road))
	})

	t.Run("touching an endpoint is not a crossing", func(t *testing.T) {
		road := orb.LineString{a, {4.9000, 52.3710}}
		assert.False(t, geometry.Intersects(a, b, road))
	})

	t.Run("disjoint", func(t *testing.T) {
		road := orb.LineString{{4.9000, 52.3710}, {4.9010, 52.3710}}
		assert.False(t, geometry.Intersects(a, b, road))
	})

	t.Run("running along a road", func(t *testing.T) {
		road := orb.LineString{a, {4.9005, 52.3700}}
		assert.True(t, geometry.Intersects(a, b, road))
	})

	t.Run("lying inside a longer road", func(t *testing.T) {
		road := orb.LineString{{4.8990, 52.3700}, {4.9020, 52.3700}}
		assert.True(t, geometry.Intersects(a, b, road))
	})

	t.Run("road ending halfway", func(t *testing.T) {
		road := orb.LineString{{4.9005, 52.3700}, {4.9005, 52.3710}}
		assert.True(t, geometry.Intersects(a, b, road))
	})

	t.Run("continuing a road past its end", func(t *testing.T) {
		road := orb.LineString{{4.8990, 52.3700}, a}
		assert.False(t, geometry.Intersects(a, b, road))
	})

	t.Run("ending on the middle of a road", func(t *testing.T) {
		road := orb.LineString{{4.9000, 52.3690}, {4.9000, 52.3710}}
		assert.False(t, geometry.Intersects(a, b, road))
	})

	t.Run("crossing part of a collection", func(t *testing.T) {
		geom := orb.Collection{orb.Point{0, 0}, orb.MultiLineString{{{4.9005, 52.3695}, {4.9005, 52.3705}}}}
		assert.True(t, geometry.Intersects(a, b, geom))
	})
}

func TestToMercatorDoesNotMutate(t *testing.T) {
	ls := orb.LineString{{4.9, 52.37}, {4.91, 52.37}}
	merc := geometry.ToMercator(ls)

	require.IsType(t, orb.LineString{}, merc)
	assert.Equal(t, orb.LineString{{4.9, 52.37}, {4.91, 52.37}}, ls)
	assert.InDelta(t, 545465.0, merc.(orb.LineString)[0].X(), 1.0)
	assert.InDelta(t, geometry.PointToMercator(ls[1]).X(), merc.(orb.LineString)[1].X(), 1e-9)
}
