package sparkle

const (
	RateID PropertyID = iota
	WidthID
	AlphaID
	SizeDecayCurveID
	SizeMinID
	SizeMaxID
	LifeTimeMinID
	LifeTimeMaxID
	EmissionIntensityID
	RotateDegreeID
	OffsetID
	UseTextureID
	SparkleTextureID

	PositionMapID
	NormalMapID
	UVMapID
	ColorTextureID
)

var propertyNames = [...]string{
	RateID:              "Rate",
	WidthID:             "Width",
	AlphaID:             "Alpha",
	SizeDecayCurveID:    "SizeDecayCurve",
	SizeMinID:           "SizeMin",
	SizeMaxID:           "SizeMax",
	LifeTimeMinID:       "LifeTimeMin",
	LifeTimeMaxID:       "LifeTimeMax",
	EmissionIntensityID: "EmissionIntensity",
	RotateDegreeID:      "RotateDegree",
	OffsetID:            "Offset",
	UseTextureID:        "UseTexture",
	SparkleTextureID:    "SparkleTexture",

	PositionMapID:  "_PositionMap",
	NormalMapID:    "_NormalMap",
	UVMapID:        "_UVMap",
	ColorTextureID: "_ColorTexture",
}

// SparkleVFX holds the tunable parameters of a sparkle effect. Width and
// Alpha are fractions in [0, 1]; the size and lifetime ranges are bounded
// by their low and high limits.
type SparkleVFX struct {
	Rate              uint32
	Width             float32
	Alpha             float32
	SizeDecayCurve    Curve
	SizeMin           float32
	SizeMax           float32
	SizeLowLimit      float32
	SizeHighLimit     float32
	LifeTimeMin       float32
	LifeTimeMax       float32
	LifeTimeLowLimit  float32
	LifeTimeHighLimit float32
	EmissionIntensity float32
	RotateDegree      float32
	Offset            float32
	UseTexture        bool
	SparkleTexture    Texture
}

func DefaultSparkleVFX() SparkleVFX {
	return SparkleVFX{
		Rate:              1000,
		Width:             0.5,
		Alpha:             1,
		SizeDecayCurve:    LinearDecay(),
		SizeMin:           0.01,
		SizeMax:           0.05,
		SizeLowLimit:      0,
		SizeHighLimit:     10,
		LifeTimeMin:       0.5,
		LifeTimeMax:       1.5,
		LifeTimeLowLimit:  0,
		LifeTimeHighLimit: 10,
		EmissionIntensity: 1,
	}
}

// Clamp forces the fractions into [0, 1] and the ranges into their limits,
// swapping min and max when they are inverted.
func (v *SparkleVFX) Clamp() {
	v.Width = clampf(v.Width, 0, 1)
	v.Alpha = clampf(v.Alpha, 0, 1)
	v.SizeMin, v.SizeMax = clampRange(v.SizeMin, v.SizeMax, v.SizeLowLimit, v.SizeHighLimit)
	v.LifeTimeMin, v.LifeTimeMax = clampRange(v.LifeTimeMin, v.LifeTimeMax, v.LifeTimeLowLimit, v.LifeTimeHighLimit)
}

func clampf(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampRange(lo, hi, low, high float32) (float32, float32) {
	if high < low {
		low, high = high, low
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return clampf(lo, low, high), clampf(hi, low, high)
}

// GetInitialProperties pulls the parameters from b. A nil binding leaves
// v untouched.
func (v *SparkleVFX) GetInitialProperties(b EffectBinding) {
	if b == nil {
		return
	}
	v.Rate = b.GetUint(RateID)
	v.Width = b.GetFloat(WidthID)
	v.Alpha = b.GetFloat(AlphaID)
	v.SizeDecayCurve = b.GetCurve(SizeDecayCurveID)
	v.SizeMin = b.GetFloat(SizeMinID)
	v.SizeMax = b.GetFloat(SizeMaxID)
	v.LifeTimeMin = b.GetFloat(LifeTimeMinID)
	v.LifeTimeMax = b.GetFloat(LifeTimeMaxID)
	v.EmissionIntensity = b.GetFloat(EmissionIntensityID)
	v.RotateDegree = b.GetFloat(RotateDegreeID)
	v.Offset = b.GetFloat(OffsetID)
	v.UseTexture = b.GetBool(UseTextureID)
	v.SparkleTexture = b.GetTexture(SparkleTextureID)
}

// SetProperties pushes the parameters and maps to b. The maps are only
// bound once a normal map exists, and the color texture only when given.
func (v *SparkleVFX) SetProperties(b EffectBinding, color, position, normal, uv Texture) {
	if b == nil {
		return
	}
	if normal != nil {
		b.SetTexture(PositionMapID, position)
		if color != nil {
			b.SetTexture(ColorTextureID, color)
		}
		b.SetTexture(NormalMapID, normal)
		b.SetTexture(UVMapID, uv)
	}

	b.SetUint(RateID, v.Rate)
	b.SetFloat(WidthID, v.Width)
	b.SetFloat(AlphaID, v.Alpha)
	b.SetCurve(SizeDecayCurveID, v.SizeDecayCurve)
	b.SetFloat(SizeMinID, v.SizeMin)
	b.SetFloat(SizeMaxID, v.SizeMax)
	b.SetFloat(LifeTimeMinID, v.LifeTimeMin)
	b.SetFloat(LifeTimeMaxID, v.LifeTimeMax)
	b.SetFloat(EmissionIntensityID, v.EmissionIntensity)
	b.SetFloat(RotateDegreeID, v.RotateDegree)
	b.SetFloat(OffsetID, v.Offset)
	b.SetBool(UseTextureID, v.UseTexture)
	b.SetTexture(SparkleTextureID, v.SparkleTexture)
}
