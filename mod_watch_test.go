package sparkle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchTriangle = `v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
f 1/1 2/2 3/3
`

const watchTwoTriangles = watchTriangle + `v 0 0 1
v 1 0 1
v 0 1 1
f 4/1 5/2 6/3
`

func TestAssetWatcher_Debounce(t *testing.T) {
	w, err := NewAssetWatcher(50 * time.Millisecond)
	require.NoError(t, err)
	defer w.Release()

	t0 := time.Unix(100, 0)
	w.pending["/tmp/b.obj"] = t0
	w.pending["/tmp/a.obj"] = t0.Add(20 * time.Millisecond)

	w.now = func() time.Time { return t0.Add(40 * time.Millisecond) }
	due, errs := w.Poll()
	assert.Empty(t, due)
	assert.Empty(t, errs)

	w.now = func() time.Time { return t0.Add(60 * time.Millisecond) }
	due, _ = w.Poll()
	assert.Equal(t, []string{"/tmp/b.obj"}, due)

	w.now = func() time.Time { return t0.Add(80 * time.Millisecond) }
	due, _ = w.Poll()
	assert.Equal(t, []string{"/tmp/a.obj"}, due)
}

func TestAssetWatchModule_ReloadsAndRebakes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.obj")
	require.NoError(t, os.WriteFile(path, []byte(watchTriangle), 0o644))

	app, assets, logs := sparkleApp(t, AssetWatchModule{}, SparkleModule{})
	defer app.Shutdown()
	id, err := assets.LoadMesh(path)
	require.NoError(t, err)
	eid := spawn(app, MeshSparklyEffectComponent{Mesh: id})

	app.Step()
	assert.Equal(t, 2, meshEffect(t, app, eid).Maps().Position.Width())

	require.NoError(t, os.WriteFile(path, []byte(watchTwoTriangles), 0o644))

	mesh, _ := assets.Mesh(id)
	deadline := time.Now().Add(5 * time.Second)
	for mesh.VertexCount() != 6 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		app.Step()
	}
	require.Equal(t, 6, mesh.VertexCount(), "mesh was not reloaded")
	assert.NotZero(t, mesh.Version())

	app.Step()
	assert.Equal(t, 3, meshEffect(t, app, eid).Maps().Position.Width())
	assert.GreaterOrEqual(t, logs.FilterMessageSnippet("reloaded").Len(), 1)
}
