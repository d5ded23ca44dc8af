package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AttributeKind selects which vertex attribute a map carries.
type AttributeKind uint8

const (
	AttributePosition AttributeKind = iota
	AttributeNormal
	AttributeUV
)

func (k AttributeKind) String() string {
	switch k {
	case AttributePosition:
		return "position"
	case AttributeNormal:
		return "normal"
	case AttributeUV:
		return "uv"
	default:
		return "unknown"
	}
}

// Channels per texel. Maps are always stored as RGBA float32.
const Channels = 4

type FilterMode uint8

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

type WrapMode uint8

const (
	WrapClamp WrapMode = iota
	WrapRepeat
)

// Sampler describes how a map must be sampled. Neighbouring texels hold
// unrelated vertices, so it is always nearest + clamp.
type Sampler struct {
	Filter FilterMode
	Wrap   WrapMode
}

var pointClamp = Sampler{Filter: FilterNearest, Wrap: WrapClamp}

// Map is a square RGBA float32 image produced by a bake.
type Map struct {
	kind  AttributeKind
	width int
	pix   []float32
}

func newMap(kind AttributeKind, width int) *Map {
	return &Map{
		kind:  kind,
		width: width,
		pix:   make([]float32, width*width*Channels),
	}
}

// NewMapFromPix wraps an already populated RGBA buffer, e.g. a GPU readback.
// The slice is copied.
func NewMapFromPix(kind AttributeKind, width int, pix []float32) (*Map, error) {
	if width <= 0 || len(pix) != width*width*Channels {
		return nil, ErrInvalidWidth
	}
	m := newMap(kind, width)
	copy(m.pix, pix)
	return m, nil
}

func (m *Map) Kind() AttributeKind { return m.kind }
func (m *Map) Width() int          { return m.width }
func (m *Map) Sampler() Sampler    { return pointClamp }

// Pix returns the backing RGBA buffer, row-major. Callers must not modify it.
func (m *Map) Pix() []float32 { return m.pix }

// Texel returns slot i in row-major order.
func (m *Map) Texel(i int) mgl32.Vec4 {
	o := i * Channels
	return mgl32.Vec4{m.pix[o], m.pix[o+1], m.pix[o+2], m.pix[o+3]}
}

// At returns the texel at column x, row y. Coordinates are clamped to the edge.
func (m *Map) At(x, y int) mgl32.Vec4 {
	x = clampInt(x, 0, m.width-1)
	y = clampInt(y, 0, m.width-1)
	return m.Texel(x + y*m.width)
}

// SampleUV reads the texel nearest to normalized coordinates (u, v).
func (m *Map) SampleUV(u, v float32) mgl32.Vec4 {
	x := int(math.Floor(float64(u * float32(m.width))))
	y := int(math.Floor(float64(v * float32(m.width))))
	return m.At(x, y)
}

func (m *Map) set(i int, c mgl32.Vec4) {
	o := i * Channels
	m.pix[o] = c[0]
	m.pix[o+1] = c[1]
	m.pix[o+2] = c[2]
	m.pix[o+3] = c[3]
}

// Bytes encodes the map as little-endian float32, the layout of an
// rgba32float texture upload.
func (m *Map) Bytes() []byte {
	buf := make([]byte, len(m.pix)*4)
	for i, v := range m.pix {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MapSet groups the three maps baked for one mesh.
type MapSet struct {
	Position *Map
	Normal   *Map
	UV       *Map
}

func (s MapSet) Complete() bool {
	return s.Position != nil && s.Normal != nil && s.UV != nil
}
