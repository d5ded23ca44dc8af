package sparkle

import (
	"image/color"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewVFX() SparkleVFX {
	vfx := DefaultSparkleVFX()
	vfx.Rate = 100
	vfx.LifeTimeMin, vfx.LifeTimeMax = 1, 1
	vfx.SizeMin, vfx.SizeMax = 0.1, 0.1
	vfx.Offset = 0.5
	vfx.Alpha = 0.5
	vfx.EmissionIntensity = 2
	return vfx
}

func previewApp(t *testing.T, seed int64) (*App, *SparkleParticles, EntityId) {
	t.Helper()
	app, assets, _ := sparkleApp(t,
		TimeModule{FixedDt: 100 * time.Millisecond},
		SparkleModule{},
		SparkleParticlesModule{MaxParticles: 50, Seed: seed},
	)
	red := assets.CreateSolidTexture(color.RGBA{R: 255, A: 255})
	eid := spawn(app, MeshSparklyEffectComponent{
		Mesh:         assets.CreateMesh(quadMesh()),
		ColorTexture: red,
		VFX:          previewVFX(),
	})
	particles, ok := Resource[SparkleParticles](app)
	require.True(t, ok)
	return app, particles, eid
}

func TestSparkleParticles_SpawnFromMaps(t *testing.T) {
	app, particles, eid := previewApp(t, 1)

	app.Step()

	require.Equal(t, 10, particles.Alive(eid))
	for _, p := range particles.Instances() {
		assert.Contains(t, []float32{0, 1}, p.Pos.X())
		assert.Contains(t, []float32{0, 1}, p.Pos.Y())
		assert.Equal(t, float32(0.5), p.Pos.Z(), "offset along the normal")
		assert.InDelta(t, 0.09, p.Size, 1e-5, "size follows the decay curve")
		assert.Equal(t, mgl32.Vec4{2, 0, 0, 0.5}, p.Color)
	}
}

func TestSparkleParticles_Cap(t *testing.T) {
	app, particles, eid := previewApp(t, 1)

	app.RunFrames(6)
	assert.Equal(t, 50, particles.Alive(eid))
	assert.Len(t, particles.Instances(), 50)
}

func TestSparkleParticles_Expire(t *testing.T) {
	app, particles, eid := previewApp(t, 1)
	fx := meshEffect(t, app, eid)
	fx.VFX.Rate = 10
	fx.VFX.LifeTimeMin, fx.VFX.LifeTimeMax = 0.25, 0.25

	app.Step()
	require.Equal(t, 1, particles.Alive(eid))
	app.Step()
	app.Step()
	// the first particle expired at 0.3s
	assert.Equal(t, 2, particles.Alive(eid))
}

func TestSparkleParticles_Deterministic(t *testing.T) {
	a, pa, _ := previewApp(t, 7)
	b, pb, _ := previewApp(t, 7)
	a.RunFrames(3)
	b.RunFrames(3)
	assert.Equal(t, pa.Instances(), pb.Instances())
}

func TestSparkleParticles_SweepsRemovedEntities(t *testing.T) {
	app, particles, eid := previewApp(t, 1)
	app.Step()
	require.NotZero(t, particles.Alive(eid))

	app.Commands().RemoveEntity(eid)
	app.FlushCommands()
	app.Step()
	assert.Zero(t, particles.Alive(eid))
	assert.Empty(t, particles.Instances())
}

func TestSparkleParticles_NoMapsNoParticles(t *testing.T) {
	particles := NewSparkleParticles(10, 0)
	vfx := previewVFX()
	particles.simulate(1, &vfx, NewPropertySheet(), 0.1)
	particles.simulate(2, &vfx, nil, 0.1)
	assert.Zero(t, particles.Alive(1))
	assert.Empty(t, particles.Instances())
}
