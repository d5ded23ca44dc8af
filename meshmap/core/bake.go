package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// BakeMap writes samples into a width x width map. Texel i takes
// samples[i mod len(samples)], so a map larger than the sample count wraps.
func BakeMap(kind AttributeKind, samples []mgl32.Vec3, width int) (*Map, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s map: %w", kind, ErrNoSamples)
	}
	if width <= 0 {
		return nil, fmt.Errorf("%s map: width %d: %w", kind, width, ErrInvalidWidth)
	}

	m := newMap(kind, width)
	n := len(samples)
	for i := 0; i < width*width; i++ {
		s := samples[i%n]
		m.set(i, mgl32.Vec4{s[0], s[1], s[2], 1})
	}
	return m, nil
}

// Bake plans a CPU map for one attribute of set and bakes it.
func Bake(set AttributeSet, kind AttributeKind) (*Map, error) {
	samples := set.Samples(kind)
	plan, err := NewPlan(len(samples), false)
	if err != nil {
		return nil, fmt.Errorf("%s map: %w", kind, err)
	}
	return BakeMap(kind, samples, plan.Width)
}

func BakePositions(set AttributeSet) (*Map, error) { return Bake(set, AttributePosition) }
func BakeNormals(set AttributeSet) (*Map, error)   { return Bake(set, AttributeNormal) }
func BakeUVs(set AttributeSet) (*Map, error)       { return Bake(set, AttributeUV) }

// BakeAll bakes position, normal and UV maps. Either all three are returned
// or none, so a failed bake never replaces a good set with a partial one.
func BakeAll(set AttributeSet) (MapSet, error) {
	pos, err := BakePositions(set)
	if err != nil {
		return MapSet{}, err
	}
	nrm, err := BakeNormals(set)
	if err != nil {
		return MapSet{}, err
	}
	uv, err := BakeUVs(set)
	if err != nil {
		return MapSet{}, err
	}
	return MapSet{Position: pos, Normal: nrm, UV: uv}, nil
}
