package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/sparkle/config"
	"github.com/gekko3d/sparkle/meshmap/core"
)

const quadOBJ = `v 0 0 0
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

func writeQuad(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))
	return path
}

func cpuConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Bake.GPU = false
	cfg.Logging.Level = "error"
	cfg.Export.Dir = t.TempDir()
	return cfg
}

func TestPlanReport(t *testing.T) {
	out, err := planReport(17, false)
	require.NoError(t, err)
	assert.Contains(t, out, "Width:     5\n")
	assert.Contains(t, out, "Texels:    25\n")

	out, err = planReport(1001, true)
	require.NoError(t, err)
	assert.Contains(t, out, "Width:     32\n")
	assert.Contains(t, out, "Workgroups: 4x4\n")
	assert.NotContains(t, out, "Truncated")

	out, err = planReport(1100, true)
	require.NoError(t, err)
	assert.Contains(t, out, "Truncated: 76 vertices never sampled\n")

	_, err = planReport(0, false)
	assert.ErrorIs(t, err, core.ErrNoSamples)
	_, err = planReport(10, true)
	assert.ErrorIs(t, err, core.ErrGPUWidthZero)
}

func TestMeshInfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, meshInfo(&buf, writeQuad(t)))

	out := buf.String()
	assert.Contains(t, out, "Vertices:  4\n")
	assert.Contains(t, out, "Triangles: 2\n")
	assert.Contains(t, out, "uv        2x2")
	assert.Contains(t, out, core.ErrGPUWidthZero.Error())
}

func TestRunBake(t *testing.T) {
	cfg := cpuConfig(t)

	files, err := runBake(writeQuad(t), cfg)
	require.NoError(t, err)

	want := []string{"quad_position.tiff", "quad_normal.tiff", "quad_uv.tiff", "quad_maps.yaml"}
	require.Len(t, files, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(cfg.Export.Dir, name), files[i])
		assert.FileExists(t, files[i])
	}
}

func TestRunBake_MissingMesh(t *testing.T) {
	_, err := runBake(filepath.Join(t.TempDir(), "nope.obj"), cpuConfig(t))
	assert.Error(t, err)
}

func TestRunPreview(t *testing.T) {
	cfg := cpuConfig(t)
	cfg.Preview.MaxParticles = 20

	out, err := runPreview(writeQuad(t), cfg, 20)
	require.NoError(t, err)
	assert.Contains(t, out, "Frames:    20\n")
	assert.Contains(t, out, "Particles: 20\n")
	assert.Contains(t, out, "Bounds:")
}

func TestReorder(t *testing.T) {
	fs := flag.NewFlagSet("bake", flag.ContinueOnError)
	var flags config.Flags
	flags.Register(fs)

	args := reorder(fs, []string{"mesh.obj", "-o", "out", "-gpu", "--debug", "-config=x.yaml"})
	assert.Equal(t, []string{"-o", "out", "-gpu", "--debug", "-config=x.yaml", "mesh.obj"}, args)

	require.NoError(t, fs.Parse(args))
	assert.Equal(t, "out", flags.OutDir)
	assert.True(t, flags.GPU)
	assert.True(t, flags.Debug)
	assert.Equal(t, "x.yaml", flags.ConfigPath)
	assert.Equal(t, []string{"mesh.obj"}, fs.Args())
}
