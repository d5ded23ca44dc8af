package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
	"gopkg.in/yaml.v3"

	"github.com/gekko3d/sparkle/meshmap/core"
)

func testMaps(t *testing.T) core.MapSet {
	t.Helper()
	set := core.AttributeSet{
		Positions: []mgl32.Vec3{{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, 1}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
		UVs:       []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
	}
	maps, err := core.BakeAll(set)
	require.NoError(t, err)
	return maps
}

func TestWriteMaps(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteMaps(dir, "cube", testMaps(t))
	require.NoError(t, err)
	require.Len(t, paths, 4)

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}

	f, err := os.Open(filepath.Join(dir, "cube_position.tiff"))
	require.NoError(t, err)
	defer f.Close()
	img, err := tiff.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())

	data, err := os.ReadFile(filepath.Join(dir, "cube_maps.yaml"))
	require.NoError(t, err)
	var side Sidecar
	require.NoError(t, yaml.Unmarshal(data, &side))
	assert.Equal(t, "cube", side.Name)
	assert.Equal(t, "point", side.Filter)
	require.Len(t, side.Maps, 3)
	assert.Equal(t, "position", side.Maps[0].Kind)
	assert.Equal(t, ChannelRange{Min: -1, Max: 1}, side.Maps[0].Channels[0])
	assert.Equal(t, "cube_uv.tiff", side.Maps[2].File)
	assert.Equal(t, ChannelRange{}, side.Maps[2].Channels[2])
}

func TestQuantizeRoundTrip(t *testing.T) {
	maps := testMaps(t)
	img, ranges := Quantize(maps.Position)
	c := img.NRGBA64At(1, 1)
	assert.InDelta(t, 1.0, Dequantize(c.R, ranges[0]), 1e-4)
	assert.InDelta(t, 1.0, Dequantize(c.B, ranges[2]), 1e-4)
	c = img.NRGBA64At(0, 0)
	assert.InDelta(t, -1.0, Dequantize(c.G, ranges[1]), 1e-4)
	assert.Equal(t, uint16(0xffff), c.A)
}

func TestWriteMaps_Incomplete(t *testing.T) {
	_, err := WriteMaps(t.TempDir(), "x", core.MapSet{})
	assert.Error(t, err)
}
