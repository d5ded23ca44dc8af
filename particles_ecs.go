package sparkle

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// ParticleInstance is one live sparkle, packed for a renderer.
type ParticleInstance struct {
	Pos      mgl32.Vec3
	Size     float32
	Rotation float32
	Color    mgl32.Vec4
}

// SoA pool per effect entity
type particlePool struct {
	pos      []mgl32.Vec3
	age      []float32
	life     []float32
	size     []float32
	rotation []float32
	color    []mgl32.Vec4

	alive    int
	spawnAcc float32 // fractional spawns
	capacity int
	rng      *rand.Rand
}

// SparkleParticles is a CPU preview of the particle simulation fed by the
// baked maps. It reads everything through the effect's binding, so it sees
// exactly what a renderer would.
type SparkleParticles struct {
	maxParticles int
	seed         int64
	pools        map[EntityId]*particlePool
	instances    []ParticleInstance
}

func NewSparkleParticles(maxParticles int, seed int64) *SparkleParticles {
	if maxParticles <= 0 {
		maxParticles = 1
	}
	return &SparkleParticles{
		maxParticles: maxParticles,
		seed:         seed,
		pools:        make(map[EntityId]*particlePool),
	}
}

// Instances returns the particles packed during the last frame. The slice
// is reused on the next frame.
func (s *SparkleParticles) Instances() []ParticleInstance { return s.instances }

// Alive is the number of live particles of one effect.
func (s *SparkleParticles) Alive(eid EntityId) int {
	if pl, ok := s.pools[eid]; ok {
		return pl.alive
	}
	return 0
}

func (s *SparkleParticles) pool(eid EntityId) *particlePool {
	pl, ok := s.pools[eid]
	if !ok {
		pl = &particlePool{rng: rand.New(rand.NewSource(s.seed + int64(eid)))}
		s.pools[eid] = pl
	}
	if pl.capacity != s.maxParticles {
		c := s.maxParticles
		pl.capacity = c
		pl.pos = make([]mgl32.Vec3, c)
		pl.age = make([]float32, c)
		pl.life = make([]float32, c)
		pl.size = make([]float32, c)
		pl.rotation = make([]float32, c)
		pl.color = make([]mgl32.Vec4, c)
		pl.alive = 0
		pl.spawnAcc = 0
	}
	return pl
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

// Swap-remove one particle
func (p *particlePool) killAt(i int) {
	last := p.alive - 1
	p.pos[i] = p.pos[last]
	p.age[i] = p.age[last]
	p.life[i] = p.life[last]
	p.size[i] = p.size[last]
	p.rotation[i] = p.rotation[last]
	p.color[i] = p.color[last]
	p.alive--
}

// SparkleParticlesModule runs the preview in PostUpdate, after the maps of
// the frame are bound. It needs the Time resource and installs TimeModule
// when nothing did before it.
type SparkleParticlesModule struct {
	MaxParticles int
	Seed         int64
}

func (mod SparkleParticlesModule) Install(app *App, cmd *Commands) {
	if _, ok := Resource[Time](app); !ok {
		TimeModule{}.Install(app, cmd)
	}
	cmd.AddResources(NewSparkleParticles(mod.MaxParticles, mod.Seed))
	cmd.UseSystem(System(sparkleParticlesSystem).InStage(PostUpdate))
}

func sparkleParticlesSystem(cmd *Commands, t *Time, particles *SparkleParticles) {
	dt := t.DtSeconds()
	if dt <= 0 {
		dt = 1.0 / 60.0
	}
	particles.instances = particles.instances[:0]

	MakeQuery1[MeshSparklyEffectComponent](cmd).Map(func(eid EntityId, fx *MeshSparklyEffectComponent) bool {
		particles.simulate(eid, &fx.VFX, fx.Binding, dt)
		return true
	})
	MakeQuery1[SkinnedMeshSparklyEffectComponent](cmd).Map(func(eid EntityId, fx *SkinnedMeshSparklyEffectComponent) bool {
		particles.simulate(eid, &fx.VFX, fx.Binding, dt)
		return true
	})

	for eid := range particles.pools {
		if !cmd.HasEntity(eid) {
			delete(particles.pools, eid)
		}
	}
}

type uvSampler interface {
	SampleUV(u, v float32) mgl32.Vec4
}

// effectMaps are the CPU maps bound to an effect. Position maps that only
// live on the device cannot be previewed.
type effectMaps struct {
	position, normal, uv MapTexture
	color                uvSampler
}

func boundMaps(b EffectBinding) (effectMaps, bool) {
	if b == nil {
		return effectMaps{}, false
	}
	var m effectMaps
	var ok bool
	if m.position, ok = b.GetTexture(PositionMapID).(MapTexture); !ok || m.position.Map == nil {
		return m, false
	}
	if m.normal, ok = b.GetTexture(NormalMapID).(MapTexture); !ok || m.normal.Map == nil {
		return m, false
	}
	if m.uv, ok = b.GetTexture(UVMapID).(MapTexture); !ok || m.uv.Map == nil {
		return m, false
	}
	m.color, _ = b.GetTexture(ColorTextureID).(uvSampler)
	return m, true
}

func (s *SparkleParticles) simulate(eid EntityId, vfx *SparkleVFX, b EffectBinding, dt float32) {
	maps, ok := boundMaps(b)
	if !ok {
		return
	}
	pl := s.pool(eid)

	// Spawn
	pl.spawnAcc += float32(vfx.Rate) * dt
	spawnCount := int(pl.spawnAcc)
	if spawnCount > 0 {
		pl.spawnAcc -= float32(spawnCount)
	}
	if spawnCount > pl.capacity-pl.alive {
		spawnCount = pl.capacity - pl.alive
	}
	w := maps.position.Map.Width()
	for i := 0; i < spawnCount; i++ {
		idx := pl.alive
		pl.alive++

		texel := pl.rng.Intn(w * w)
		u := (float32(texel%w) + 0.5) / float32(w)
		v := (float32(texel/w) + 0.5) / float32(w)
		p := maps.position.Map.Texel(texel).Vec3()
		n := maps.normal.SampleUV(u, v).Vec3()
		uv := maps.uv.SampleUV(u, v)

		pl.pos[idx] = p.Add(n.Mul(vfx.Offset))
		pl.age[idx] = 0
		pl.life[idx] = lerp(vfx.LifeTimeMin, vfx.LifeTimeMax, pl.rng.Float32())
		pl.size[idx] = lerp(vfx.SizeMin, vfx.SizeMax, pl.rng.Float32())
		pl.rotation[idx] = pl.rng.Float32() * 360

		c := mgl32.Vec4{1, 1, 1, 1}
		if maps.color != nil {
			c = maps.color.SampleUV(uv.X(), uv.Y())
		}
		pl.color[idx] = mgl32.Vec4{
			c.X() * vfx.EmissionIntensity,
			c.Y() * vfx.EmissionIntensity,
			c.Z() * vfx.EmissionIntensity,
			c.W() * vfx.Alpha,
		}
	}

	// Age
	i := 0
	for i < pl.alive {
		age := pl.age[i] + dt
		if age >= pl.life[i] {
			pl.killAt(i)
			continue
		}
		pl.age[i] = age
		pl.rotation[i] += vfx.RotateDegree * dt
		i++
	}

	for i = 0; i < pl.alive; i++ {
		s.instances = append(s.instances, ParticleInstance{
			Pos:      pl.pos[i],
			Size:     pl.size[i] * vfx.SizeDecayCurve.Evaluate(pl.age[i]/pl.life[i]),
			Rotation: pl.rotation[i],
			Color:    pl.color[i],
		})
	}
}
