package sparkle

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sparkle/meshmap/core"
)

// PropertyID names one property of an effect binding. The set of ids is
// fixed; PropertyToID only looks names up.
type PropertyID int32

// InvalidProperty is returned for names outside the property table.
const InvalidProperty PropertyID = -1

// propertyIDs is filled once from propertyNames and only read afterwards.
var propertyIDs = func() map[string]PropertyID {
	ids := make(map[string]PropertyID, len(propertyNames))
	for id, name := range propertyNames {
		ids[name] = PropertyID(id)
	}
	return ids
}()

// PropertyToID returns the id of name, or InvalidProperty.
func PropertyToID(name string) PropertyID {
	if id, ok := propertyIDs[name]; ok {
		return id
	}
	return InvalidProperty
}

func (id PropertyID) String() string {
	if id < 0 || int(id) >= len(propertyNames) {
		return "<unknown>"
	}
	return propertyNames[id]
}

// Texture is anything an effect can sample.
type Texture interface {
	Dimensions() (width, height int)
}

// MapTexture exposes a CPU-baked map as a Texture.
type MapTexture struct {
	Map *core.Map
}

func (t MapTexture) Dimensions() (int, int) { return t.Map.Width(), t.Map.Width() }

func (t MapTexture) SampleUV(u, v float32) mgl32.Vec4 { return t.Map.SampleUV(u, v) }

// GPUTexture is a map that only exists on the device.
type GPUTexture struct {
	View  *wgpu.TextureView
	Width uint32
}

func (t GPUTexture) Dimensions() (int, int) { return int(t.Width), int(t.Width) }

// EffectBinding is the property surface of a running particle effect.
// Getters return the zero value for properties that were never set.
type EffectBinding interface {
	GetUint(id PropertyID) uint32
	SetUint(id PropertyID, v uint32)
	GetFloat(id PropertyID) float32
	SetFloat(id PropertyID, v float32)
	GetBool(id PropertyID) bool
	SetBool(id PropertyID, v bool)
	GetCurve(id PropertyID) Curve
	SetCurve(id PropertyID, c Curve)
	GetTexture(id PropertyID) Texture
	SetTexture(id PropertyID, t Texture)
}

// PropertySheet is an in-memory EffectBinding.
type PropertySheet struct {
	uints    map[PropertyID]uint32
	floats   map[PropertyID]float32
	bools    map[PropertyID]bool
	curves   map[PropertyID]Curve
	textures map[PropertyID]Texture
}

func NewPropertySheet() *PropertySheet {
	return &PropertySheet{
		uints:    make(map[PropertyID]uint32),
		floats:   make(map[PropertyID]float32),
		bools:    make(map[PropertyID]bool),
		curves:   make(map[PropertyID]Curve),
		textures: make(map[PropertyID]Texture),
	}
}

func (s *PropertySheet) GetUint(id PropertyID) uint32      { return s.uints[id] }
func (s *PropertySheet) SetUint(id PropertyID, v uint32)   { s.uints[id] = v }
func (s *PropertySheet) GetFloat(id PropertyID) float32    { return s.floats[id] }
func (s *PropertySheet) SetFloat(id PropertyID, v float32) { s.floats[id] = v }
func (s *PropertySheet) GetBool(id PropertyID) bool        { return s.bools[id] }
func (s *PropertySheet) SetBool(id PropertyID, v bool)     { s.bools[id] = v }
func (s *PropertySheet) GetCurve(id PropertyID) Curve      { return s.curves[id].Clone() }
func (s *PropertySheet) SetCurve(id PropertyID, c Curve)   { s.curves[id] = c.Clone() }
func (s *PropertySheet) GetTexture(id PropertyID) Texture  { return s.textures[id] }

// SetTexture with a nil texture clears the slot.
func (s *PropertySheet) SetTexture(id PropertyID, t Texture) {
	if t == nil {
		delete(s.textures, id)
		return
	}
	s.textures[id] = t
}

// HasTexture reports whether a texture is bound to id.
func (s *PropertySheet) HasTexture(id PropertyID) bool {
	_, ok := s.textures[id]
	return ok
}

// Keyframe is a point on a Curve.
type Keyframe struct {
	Time  float32 `yaml:"time"`
	Value float32 `yaml:"value"`
}

// Curve is a piecewise linear function of time. Outside its keys it holds
// the first or last value.
type Curve struct {
	Keys []Keyframe `yaml:"keys"`
}

func NewCurve(keys ...Keyframe) Curve {
	c := Curve{Keys: append([]Keyframe(nil), keys...)}
	sort.SliceStable(c.Keys, func(i, j int) bool { return c.Keys[i].Time < c.Keys[j].Time })
	return c
}

// LinearDecay goes from 1 at t=0 to 0 at t=1.
func LinearDecay() Curve {
	return NewCurve(Keyframe{0, 1}, Keyframe{1, 0})
}

func (c Curve) Clone() Curve {
	return Curve{Keys: append([]Keyframe(nil), c.Keys...)}
}

// Evaluate returns 1 for a curve without keys.
func (c Curve) Evaluate(t float32) float32 {
	n := len(c.Keys)
	switch {
	case n == 0:
		return 1
	case t <= c.Keys[0].Time:
		return c.Keys[0].Value
	case t >= c.Keys[n-1].Time:
		return c.Keys[n-1].Value
	}
	i := sort.Search(n, func(i int) bool { return c.Keys[i].Time > t })
	a, b := c.Keys[i-1], c.Keys[i]
	if b.Time == a.Time {
		return b.Value
	}
	f := (t - a.Time) / (b.Time - a.Time)
	return a.Value + (b.Value-a.Value)*f
}
