package sparkle

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gekko3d/sparkle/meshmap/core"
	"github.com/gekko3d/sparkle/meshmap/gpu"
)

// MeshSparklyEffectComponent scatters sparkles over a static mesh. Mesh is
// the primary source and MeshFilter the alternative picked by
// UseMeshFilter; a change to either asset triggers a rebake of all three
// maps.
//
// A nil Binding is replaced by a fresh PropertySheet seeded from VFX. A
// Binding supplied by the caller is read once into VFX on the first frame.
type MeshSparklyEffectComponent struct {
	Mesh          AssetId
	MeshFilter    AssetId
	UseMeshFilter bool
	ColorTexture  AssetId
	VFX           SparkleVFX
	Binding       EffectBinding

	state *effectState
}

// SkinnedMeshSparklyEffectComponent scatters sparkles over the entity's
// SkinnedMeshComponent. The position map follows the pose every frame; the
// normal and UV maps are rebaked only when the source mesh changes.
type SkinnedMeshSparklyEffectComponent struct {
	ColorTexture AssetId
	VFX          SparkleVFX
	Binding      EffectBinding

	state *effectState
}

type effectState struct {
	identity      core.BakeIdentity
	maps          core.MapSet
	position      Texture
	useMeshFilter bool
	problem       string
}

func (fx *MeshSparklyEffectComponent) begin() *effectState {
	if fx.state == nil {
		fx.state = &effectState{useMeshFilter: fx.UseMeshFilter}
		fx.Binding = initBinding(&fx.VFX, fx.Binding)
	}
	return fx.state
}

func (fx *SkinnedMeshSparklyEffectComponent) begin() *effectState {
	if fx.state == nil {
		fx.state = &effectState{}
		fx.Binding = initBinding(&fx.VFX, fx.Binding)
	}
	return fx.state
}

func initBinding(vfx *SparkleVFX, b EffectBinding) EffectBinding {
	if b == nil {
		return NewPropertySheet()
	}
	vfx.GetInitialProperties(b)
	return b
}

// Maps returns the last successful bake.
func (fx *MeshSparklyEffectComponent) Maps() core.MapSet { return fx.state.mapsOrZero() }

// BakeState reports whether the effect has been baked at least once since
// its last invalidation.
func (fx *MeshSparklyEffectComponent) BakeState() core.BakeState {
	if fx.state == nil {
		return core.Unbaked
	}
	return fx.state.identity.State()
}

// MarkDirty forces a rebake on the next frame.
func (fx *MeshSparklyEffectComponent) MarkDirty() { fx.begin().identity.MarkDirty() }

// Maps holds the CPU normal and UV maps. Position is only set while the
// position map is baked on the CPU.
func (fx *SkinnedMeshSparklyEffectComponent) Maps() core.MapSet { return fx.state.mapsOrZero() }

// PositionMap is the map bound as _PositionMap: a GPUTexture when the
// device baked it, a MapTexture otherwise.
func (fx *SkinnedMeshSparklyEffectComponent) PositionMap() Texture {
	if fx.state == nil {
		return nil
	}
	return fx.state.position
}

func (fx *SkinnedMeshSparklyEffectComponent) BakeState() core.BakeState {
	if fx.state == nil {
		return core.Unbaked
	}
	return fx.state.identity.State()
}

func (fx *SkinnedMeshSparklyEffectComponent) MarkDirty() { fx.begin().identity.MarkDirty() }

func (st *effectState) mapsOrZero() core.MapSet {
	if st == nil {
		return core.MapSet{}
	}
	return st.maps
}

// report logs err once per distinct message. A nil err resets it.
func (st *effectState) report(log Logger, eid EntityId, err error) {
	if err == nil {
		st.problem = ""
		return
	}
	if msg := err.Error(); msg != st.problem {
		st.problem = msg
		log.Warnf("sparkle effect %d skipped: %v", eid, err)
	}
}

// positionBaker is the device side of a skinned position map.
type positionBaker interface {
	Bake(positions []mgl32.Vec3) error
	Texture() *wgpu.TextureView
	Width() uint32
	Release()
}

// SparkleBakers owns one GPU position baker per skinned effect entity.
// Without a device every position map is baked on the CPU.
type SparkleBakers struct {
	log      Logger
	newBaker func(eid EntityId) (positionBaker, error)
	bakers   map[EntityId]positionBaker
	fallback map[EntityId]bool
}

func NewSparkleBakers(device *wgpu.Device, log Logger) *SparkleBakers {
	if log == nil {
		log = NewNopLogger()
	}
	b := &SparkleBakers{
		log:      log,
		bakers:   make(map[EntityId]positionBaker),
		fallback: make(map[EntityId]bool),
	}
	if device != nil {
		b.newBaker = func(eid EntityId) (positionBaker, error) {
			return gpu.NewPositionBaker(device,
				gpu.WithLogger(log),
				gpu.WithLabel(fmt.Sprintf("sparkle-%d", eid)),
			)
		}
	}
	return b
}

// GPU reports whether position maps are baked on the device.
func (b *SparkleBakers) GPU() bool { return b.newBaker != nil }

// Len is the number of live device bakers.
func (b *SparkleBakers) Len() int { return len(b.bakers) }

func (b *SparkleBakers) baker(eid EntityId) (positionBaker, error) {
	if baker, ok := b.bakers[eid]; ok {
		return baker, nil
	}
	baker, err := b.newBaker(eid)
	if err != nil {
		return nil, err
	}
	b.bakers[eid] = baker
	return baker, nil
}

// bakePositions bakes positions for eid on the device, falling back to the
// CPU when there is no device or the vertex count is too small for an
// aligned width.
func (b *SparkleBakers) bakePositions(eid EntityId, positions []mgl32.Vec3) (Texture, *core.Map, error) {
	if b.newBaker != nil {
		_, err := core.NewPlan(len(positions), true)
		var baker positionBaker
		if err == nil {
			baker, err = b.baker(eid)
		}
		if err == nil {
			err = baker.Bake(positions)
		}
		switch {
		case err == nil:
			if b.fallback[eid] {
				b.log.Debugf("sparkle effect %d: position map back on the gpu", eid)
				delete(b.fallback, eid)
			}
			return GPUTexture{View: baker.Texture(), Width: baker.Width()}, nil, nil
		case !errors.Is(err, core.ErrGPUWidthZero):
			return nil, nil, err
		case !b.fallback[eid]:
			b.log.Debugf("sparkle effect %d: %d vertices, baking positions on the cpu", eid, len(positions))
			b.fallback[eid] = true
		}
	}
	m, err := core.BakePositions(core.AttributeSet{Positions: positions})
	if err != nil {
		return nil, nil, err
	}
	return MapTexture{Map: m}, m, nil
}

// sweep releases bakers whose entity is gone.
func (b *SparkleBakers) sweep(alive func(EntityId) bool) {
	for eid, baker := range b.bakers {
		if !alive(eid) {
			baker.Release()
			delete(b.bakers, eid)
		}
	}
	for eid := range b.fallback {
		if !alive(eid) {
			delete(b.fallback, eid)
		}
	}
}

func (b *SparkleBakers) Release() {
	ids := make([]EntityId, 0, len(b.bakers))
	for eid := range b.bakers {
		ids = append(ids, eid)
	}
	slices.Sort(ids)
	for _, eid := range ids {
		b.bakers[eid].Release()
		delete(b.bakers, eid)
	}
}

// SparkleModule bakes and binds the maps of every sparkle effect in Update.
// With GPU set and a *GpuState resource installed, skinned position maps
// are baked on the device.
type SparkleModule struct {
	GPU bool
}

func (mod SparkleModule) Install(app *App, cmd *Commands) {
	var device *wgpu.Device
	if mod.GPU {
		if state, ok := Resource[GpuState](app); ok {
			device = state.Device
		} else {
			cmd.Logger().Warnf("sparkle: gpu baking requested without a gpu device, using the cpu")
		}
	}
	cmd.AddResources(NewSparkleBakers(device, cmd.Logger()))
	cmd.UseSystem(System(meshSparkleSystem).InStage(Update))
	cmd.UseSystem(System(skinnedSparkleSystem).InStage(Update))
	cmd.UseSystem(System(sparkleBakerSweepSystem).InStage(PostUpdate))
}

func assetIdentity(assets *AssetServer, id AssetId) uuid.UUID {
	if id == "" {
		return uuid.Nil
	}
	if mesh, ok := assets.Mesh(id); ok {
		return mesh.Identity()
	}
	return uuid.Nil
}

func (fx *MeshSparklyEffectComponent) source(assets *AssetServer) (*MeshAsset, error) {
	id := fx.Mesh
	if fx.UseMeshFilter {
		id = fx.MeshFilter
	}
	if id == "" {
		return nil, errors.New("no mesh assigned")
	}
	mesh, ok := assets.Mesh(id)
	if !ok {
		return nil, fmt.Errorf("mesh %s: %w", id, ErrAssetNotFound)
	}
	return mesh, nil
}

func colorTexture(assets *AssetServer, id AssetId) Texture {
	if id == "" {
		return nil
	}
	if tex, ok := assets.Texture(id); ok {
		return tex
	}
	return nil
}

func mapTexture(m *core.Map) Texture {
	if m == nil {
		return nil
	}
	return MapTexture{Map: m}
}

func meshSparkleSystem(cmd *Commands, assets *AssetServer) {
	log := cmd.Logger()
	MakeQuery1[MeshSparklyEffectComponent](cmd).Map(func(eid EntityId, fx *MeshSparklyEffectComponent) bool {
		st := fx.begin()
		if st.useMeshFilter != fx.UseMeshFilter {
			st.useMeshFilter = fx.UseMeshFilter
			st.identity.MarkDirty()
		}

		mesh, aux := assetIdentity(assets, fx.Mesh), assetIdentity(assets, fx.MeshFilter)
		if st.identity.Stale(mesh, aux) {
			maps, err := bakeMeshMaps(fx, assets)
			st.report(log, eid, err)
			if err == nil {
				st.maps = maps
				st.identity.Record(mesh, aux)
				log.Debugf("sparkle effect %d baked %dx%d maps", eid, maps.Position.Width(), maps.Position.Width())
			}
		}

		m := st.maps
		fx.VFX.SetProperties(fx.Binding, colorTexture(assets, fx.ColorTexture),
			mapTexture(m.Position), mapTexture(m.Normal), mapTexture(m.UV))
		return true
	})
}

func bakeMeshMaps(fx *MeshSparklyEffectComponent, assets *AssetServer) (core.MapSet, error) {
	src, err := fx.source(assets)
	if err != nil {
		return core.MapSet{}, err
	}
	set, err := core.Extract(src)
	if err != nil {
		return core.MapSet{}, fmt.Errorf("mesh %s: %w", src.Id(), err)
	}
	return core.BakeAll(set)
}

func skinnedSparkleSystem(cmd *Commands, assets *AssetServer, bakers *SparkleBakers) {
	log := cmd.Logger()
	MakeQuery2[SkinnedMeshComponent, SkinnedMeshSparklyEffectComponent](cmd).Map(func(eid EntityId, skin *SkinnedMeshComponent, fx *SkinnedMeshSparklyEffectComponent) bool {
		st := fx.begin()
		color := colorTexture(assets, fx.ColorTexture)

		if err := skinnedSource(assets, skin); err != nil {
			st.report(log, eid, err)
			fx.VFX.SetProperties(fx.Binding, color, st.position, mapTexture(st.maps.Normal), mapTexture(st.maps.UV))
			return true
		}

		var err error
		if st.identity.Stale(skin.Source(), uuid.Nil) {
			var maps core.MapSet
			if maps, err = bakeRestMaps(assets, skin.Mesh); err == nil {
				st.maps.Normal, st.maps.UV = maps.Normal, maps.UV
				st.identity.Record(skin.Source(), uuid.Nil)
			}
		}
		if err == nil {
			var tex Texture
			var cpu *core.Map
			if tex, cpu, err = bakers.bakePositions(eid, skin.Positions()); err == nil {
				st.position = tex
				st.maps.Position = cpu
			}
		}
		st.report(log, eid, err)

		fx.VFX.SetProperties(fx.Binding, color, st.position, mapTexture(st.maps.Normal), mapTexture(st.maps.UV))
		return true
	})
}

func skinnedSource(assets *AssetServer, skin *SkinnedMeshComponent) error {
	if skin.Mesh == "" {
		return errors.New("no mesh assigned")
	}
	if _, ok := assets.Mesh(skin.Mesh); !ok {
		return fmt.Errorf("mesh %s: %w", skin.Mesh, ErrAssetNotFound)
	}
	if !skin.Readable() {
		return fmt.Errorf("mesh %s: %w", skin.Mesh, core.ErrNotReadable)
	}
	return nil
}

// bakeRestMaps bakes the normal and UV maps of a skinned effect from the
// rest mesh, so they do not depend on the pose of the frame they were
// baked on.
func bakeRestMaps(assets *AssetServer, id AssetId) (core.MapSet, error) {
	mesh, ok := assets.Mesh(id)
	if !ok {
		return core.MapSet{}, fmt.Errorf("mesh %s: %w", id, ErrAssetNotFound)
	}
	set, err := core.Extract(mesh)
	if err != nil {
		return core.MapSet{}, fmt.Errorf("mesh %s: %w", id, err)
	}
	normal, err := core.BakeNormals(set)
	if err != nil {
		return core.MapSet{}, err
	}
	uv, err := core.BakeUVs(set)
	if err != nil {
		return core.MapSet{}, err
	}
	return core.MapSet{Normal: normal, UV: uv}, nil
}

func sparkleBakerSweepSystem(cmd *Commands, bakers *SparkleBakers) {
	bakers.sweep(cmd.HasEntity)
}

// MarkMeshDirty invalidates every effect that reads mesh id, directly or
// through a skinned mesh.
func MarkMeshDirty(cmd *Commands, id AssetId) int {
	n := 0
	MakeQuery1[MeshSparklyEffectComponent](cmd).Map(func(eid EntityId, fx *MeshSparklyEffectComponent) bool {
		if fx.Mesh == id || fx.MeshFilter == id {
			fx.MarkDirty()
			n++
		}
		return true
	})
	MakeQuery2[SkinnedMeshComponent, SkinnedMeshSparklyEffectComponent](cmd).Map(func(eid EntityId, skin *SkinnedMeshComponent, fx *SkinnedMeshSparklyEffectComponent) bool {
		if skin.Mesh == id {
			fx.MarkDirty()
			n++
		}
		return true
	})
	return n
}
