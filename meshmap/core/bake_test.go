package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMesh struct {
	readable  bool
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	uvs       []mgl32.Vec2
}

func (m *testMesh) Readable() bool          { return m.readable }
func (m *testMesh) Positions() []mgl32.Vec3 { return m.positions }
func (m *testMesh) Normals() []mgl32.Vec3   { return m.normals }
func (m *testMesh) UVs() []mgl32.Vec2       { return m.uvs }

func cubeCorners() []mgl32.Vec3 {
	return []mgl32.Vec3{
		{-1, -1, -1},
		{1, -1, -1},
		{-1, 1, -1},
		{1, 1, 1},
	}
}

func TestBakeMap_RoundTrip(t *testing.T) {
	m, err := BakeMap(AttributePosition, cubeCorners(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, m.Width())

	for i, p := range cubeCorners() {
		assert.Equal(t, mgl32.Vec4{p[0], p[1], p[2], 1}, m.Texel(i), "texel %d", i)
	}
	assert.Equal(t, m.Texel(3), m.At(1, 1))
	assert.Equal(t, m.Texel(1), m.At(1, 0))
}

func TestBakeMap_Wrap(t *testing.T) {
	samples := []mgl32.Vec3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	m, err := BakeMap(AttributeNormal, samples, 2)
	require.NoError(t, err)

	assert.Equal(t, mgl32.Vec4{1, 2, 3, 1}, m.Texel(3))

	big, err := BakeMap(AttributeNormal, samples, 5)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		s := samples[i%3]
		assert.Equal(t, mgl32.Vec4{s[0], s[1], s[2], 1}, big.Texel(i))
	}
}

func TestBakeMap_Errors(t *testing.T) {
	_, err := BakeMap(AttributePosition, nil, 4)
	assert.ErrorIs(t, err, ErrNoSamples)

	_, err = BakeMap(AttributePosition, cubeCorners(), 0)
	assert.ErrorIs(t, err, ErrInvalidWidth)
}

func TestBakeMap_Idempotent(t *testing.T) {
	samples := make([]mgl32.Vec3, 37)
	for i := range samples {
		samples[i] = mgl32.Vec3{float32(i), float32(i) * 0.5, -float32(i)}
	}
	a, err := BakeMap(AttributePosition, samples, 7)
	require.NoError(t, err)
	b, err := BakeMap(AttributePosition, samples, 7)
	require.NoError(t, err)
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestBakeMap_SamplerIsPointClamp(t *testing.T) {
	m, err := BakeMap(AttributeUV, cubeCorners(), 2)
	require.NoError(t, err)
	assert.Equal(t, Sampler{Filter: FilterNearest, Wrap: WrapClamp}, m.Sampler())

	// outside coordinates clamp to the edge
	assert.Equal(t, m.At(1, 1), m.At(5, 9))
	assert.Equal(t, m.At(0, 0), m.At(-3, -1))
	assert.Equal(t, m.At(1, 0), m.SampleUV(0.75, 0.1))
}

func TestExtract(t *testing.T) {
	src := &testMesh{
		readable:  true,
		positions: cubeCorners(),
		normals:   []mgl32.Vec3{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}},
		uvs:       []mgl32.Vec2{{0, 0}, {1, 0}},
	}
	set, err := Extract(src)
	require.NoError(t, err)
	assert.Equal(t, 4, set.VertexCount())
	assert.Len(t, set.UVs, 2)

	// the snapshot is independent of the source
	src.positions[0] = mgl32.Vec3{9, 9, 9}
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, set.Positions[0])

	_, err = Extract(&testMesh{readable: false, positions: cubeCorners()})
	assert.ErrorIs(t, err, ErrNotReadable)

	_, err = Extract(nil)
	assert.ErrorIs(t, err, ErrNotReadable)
}

func TestBakeAll(t *testing.T) {
	set := AttributeSet{
		Positions: cubeCorners(),
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		UVs:       []mgl32.Vec2{{0.25, 0.5}, {1, 0}, {0, 1}, {1, 1}, {0.5, 0.5}},
	}
	maps, err := BakeAll(set)
	require.NoError(t, err)
	require.True(t, maps.Complete())

	assert.Equal(t, 2, maps.Position.Width())
	assert.Equal(t, 2, maps.Normal.Width())
	assert.Equal(t, 3, maps.UV.Width(), "uv map is planned from the uv count")
	assert.Equal(t, AttributeUV, maps.UV.Kind())
	assert.Equal(t, mgl32.Vec4{0.25, 0.5, 0, 1}, maps.UV.Texel(0))
	assert.Equal(t, mgl32.Vec4{0.25, 0.5, 0, 1}, maps.UV.Texel(5))
}

func TestBakeAll_NoPartialResult(t *testing.T) {
	set := AttributeSet{
		Positions: cubeCorners(),
		Normals:   cubeCorners(),
	}
	maps, err := BakeAll(set)
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.False(t, maps.Complete())
	assert.Nil(t, maps.Position)
}

func TestNewMapFromPix(t *testing.T) {
	_, err := NewMapFromPix(AttributePosition, 2, make([]float32, 3))
	assert.ErrorIs(t, err, ErrInvalidWidth)

	pix := make([]float32, 16)
	pix[4] = 3
	m, err := NewMapFromPix(AttributePosition, 2, pix)
	require.NoError(t, err)
	assert.Equal(t, float32(3), m.Texel(1).X())
}
