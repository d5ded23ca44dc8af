package sparkle

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `
# a unit quad in the xy plane
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseOBJ_Quad(t *testing.T) {
	data, err := ParseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)

	assert.True(t, data.Readable)
	assert.Len(t, data.Positions, 4)
	assert.Len(t, data.Normals, 4)
	assert.Len(t, data.UVs, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, data.Indices)
	assert.Equal(t, mgl32.Vec2{1, 1}, data.UVs[2])
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, data.Normals[3])
}

func TestParseOBJ_SplitsSeams(t *testing.T) {
	// the same position with two different uvs becomes two vertices
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
vt 0.5 0.5
f 1/1 2/2 3/3
f 1/4 3/3 2/2
`
	data, err := ParseOBJ(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, data.Positions, 4)
	assert.Equal(t, data.Positions[0], data.Positions[3])
	assert.NotEqual(t, data.UVs[0], data.UVs[3])
}

func TestParseOBJ_GeneratesNormals(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`
	data, err := ParseOBJ(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, data.Normals, 3)
	for _, n := range data.Normals {
		assert.InDelta(t, 1.0, n.Z(), 1e-6)
	}
	assert.Empty(t, data.UVs, "no vt lines means no uvs")
}

func TestParseOBJ_NegativeIndices(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	data, err := ParseOBJ(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, data.Indices)
}

func TestParseOBJ_PointCloud(t *testing.T) {
	src := `
v 1 0 0
v -1 0 0
v 0 2 0
`
	data, err := ParseOBJ(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, data.Positions, 3)
	assert.Len(t, data.Normals, 3)
	assert.Nil(t, data.Indices)
	assert.Nil(t, data.UVs)
	assert.InDelta(t, 1.0, data.Normals[2].Len(), 1e-6)
}

func TestParseOBJ_Errors(t *testing.T) {
	cases := map[string]string{
		"short vertex":  "v 1 2\n",
		"bad float":     "v 1 x 3\n",
		"zero index":    "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n",
		"out of range":  "v 0 0 0\nf 1 2 3\n",
		"two corners":   "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"bad uv index":  "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1/9 2 3\n",
		"garbage index": "v 0 0 0\nv 1 0 0\nv 0 1 0\nf a b c\n",
	}
	for name, src := range cases {
		_, err := ParseOBJ(strings.NewReader(src))
		assert.Error(t, err, name)
	}
}

func TestSmoothNormals_SharedVertex(t *testing.T) {
	// two triangles folded 90 degrees along the x axis
	positions := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	indices := []uint32{0, 1, 2, 0, 3, 1}
	n := SmoothNormals(positions, indices)
	assert.InDelta(t, 1.0, n[0].Len(), 1e-6)
	assert.InDelta(t, n[0].Y(), n[0].Z(), 1e-6)
	assert.InDelta(t, 1.0, n[2].Z(), 1e-6)
}
