package sparkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/sparkle/meshmap/core"
)

func TestPropertyToID_StaticTable(t *testing.T) {
	assert.Equal(t, PositionMapID, PropertyToID("_PositionMap"))
	assert.Equal(t, SizeDecayCurveID, PropertyToID("SizeDecayCurve"))
	assert.Equal(t, "_ColorTexture", ColorTextureID.String())

	assert.Equal(t, InvalidProperty, PropertyToID("SomethingNew"))
	assert.Equal(t, InvalidProperty, PropertyToID("SomethingNew"), "lookups never extend the table")
	assert.Len(t, propertyIDs, len(propertyNames))
	assert.Equal(t, "<unknown>", InvalidProperty.String())
	assert.Equal(t, "<unknown>", PropertyID(len(propertyNames)).String())

	for id, name := range propertyNames {
		assert.Equal(t, PropertyID(id), PropertyToID(name), name)
	}
}

func TestCurve_Evaluate(t *testing.T) {
	c := NewCurve(Keyframe{1, 0}, Keyframe{0, 1}, Keyframe{0.5, 0.8})

	tests := []struct {
		at   float32
		want float32
	}{
		{-1, 1},
		{0, 1},
		{0.25, 0.9},
		{0.5, 0.8},
		{0.75, 0.4},
		{1, 0},
		{3, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, c.Evaluate(tt.at), 1e-6, "t=%v", tt.at)
	}
	assert.Equal(t, float32(1), Curve{}.Evaluate(0.3))
}

func TestPropertySheet_CurveIsCopied(t *testing.T) {
	sheet := NewPropertySheet()
	c := LinearDecay()
	sheet.SetCurve(SizeDecayCurveID, c)
	c.Keys[0].Value = 7

	got := sheet.GetCurve(SizeDecayCurveID)
	assert.Equal(t, float32(1), got.Keys[0].Value)
	got.Keys[1].Value = 9
	assert.Equal(t, float32(0), sheet.GetCurve(SizeDecayCurveID).Keys[1].Value)
}

func TestSparkleVFX_RoundTrip(t *testing.T) {
	sheet := NewPropertySheet()
	sparkle := MapTexture{Map: mustMap(t, 1)}
	vfx := DefaultSparkleVFX()
	vfx.Rate = 250
	vfx.RotateDegree = 45
	vfx.UseTexture = true
	vfx.SparkleTexture = sparkle

	vfx.SetProperties(sheet, nil, nil, nil, nil)

	var back SparkleVFX
	back.SizeLowLimit, back.SizeHighLimit = vfx.SizeLowLimit, vfx.SizeHighLimit
	back.LifeTimeLowLimit, back.LifeTimeHighLimit = vfx.LifeTimeLowLimit, vfx.LifeTimeHighLimit
	back.GetInitialProperties(sheet)
	assert.Equal(t, vfx, back)
	assert.False(t, sheet.HasTexture(PositionMapID), "maps are not bound before a normal map exists")
}

func TestSparkleVFX_SetPropertiesBindsMaps(t *testing.T) {
	sheet := NewPropertySheet()
	pos, nrm, uv := MapTexture{Map: mustMap(t, 2)}, MapTexture{Map: mustMap(t, 2)}, MapTexture{Map: mustMap(t, 2)}
	vfx := DefaultSparkleVFX()

	vfx.SetProperties(sheet, nil, pos, nrm, uv)
	assert.Equal(t, pos, sheet.GetTexture(PositionMapID))
	assert.Equal(t, nrm, sheet.GetTexture(NormalMapID))
	assert.Equal(t, uv, sheet.GetTexture(UVMapID))
	assert.False(t, sheet.HasTexture(ColorTextureID))

	color := MapTexture{Map: mustMap(t, 1)}
	vfx.SetProperties(sheet, color, pos, nrm, uv)
	assert.Equal(t, color, sheet.GetTexture(ColorTextureID))

	vfx.SetProperties(sheet, nil, pos, nrm, uv)
	assert.Equal(t, color, sheet.GetTexture(ColorTextureID), "a missing color texture keeps the bound one")

	assert.NotPanics(t, func() {
		vfx.SetProperties(nil, color, pos, nrm, uv)
		vfx.GetInitialProperties(nil)
	})
}

func TestSparkleVFX_Clamp(t *testing.T) {
	vfx := DefaultSparkleVFX()
	vfx.Width = 1.5
	vfx.Alpha = -1
	vfx.SizeMin, vfx.SizeMax = 12, 3
	vfx.LifeTimeMin, vfx.LifeTimeMax = -2, 20

	vfx.Clamp()
	assert.Equal(t, float32(1), vfx.Width)
	assert.Equal(t, float32(0), vfx.Alpha)
	assert.Equal(t, float32(3), vfx.SizeMin)
	assert.Equal(t, float32(10), vfx.SizeMax)
	assert.Equal(t, float32(0), vfx.LifeTimeMin)
	assert.Equal(t, float32(10), vfx.LifeTimeMax)
}

func TestTextureDimensions(t *testing.T) {
	w, h := MapTexture{Map: mustMap(t, 3)}.Dimensions()
	assert.Equal(t, [2]int{3, 3}, [2]int{w, h})
	w, h = GPUTexture{Width: 16}.Dimensions()
	assert.Equal(t, [2]int{16, 16}, [2]int{w, h})
}

func mustMap(t *testing.T, width int) *core.Map {
	t.Helper()
	m, err := core.NewMapFromPix(core.AttributePosition, width, make([]float32, width*width*core.Channels))
	require.NoError(t, err)
	return m
}
