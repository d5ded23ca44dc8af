package core

import (
	"fmt"
	"math"
)

// GPUTile is the compute workgroup edge. GPU-aligned widths are multiples of it.
const GPUTile = 8

// PlanWidth returns the edge of the square map that holds vertexCount samples.
// The width is ceil(sqrt(vertexCount)); with gpuAligned it is further rounded
// down to a multiple of GPUTile, which may leave width² < vertexCount.
func PlanWidth(vertexCount uint32, gpuAligned bool) (uint32, error) {
	if vertexCount == 0 {
		return 0, ErrNoSamples
	}
	r := ceilSqrt(uint64(vertexCount))
	if !gpuAligned {
		return uint32(r), nil
	}
	w := r / GPUTile * GPUTile
	if w == 0 {
		return 0, fmt.Errorf("%d vertices (r=%d): %w", vertexCount, r, ErrGPUWidthZero)
	}
	return uint32(w), nil
}

// ceilSqrt is exact for every uint32 input; the float estimate is only a seed.
func ceilSqrt(n uint64) uint64 {
	r := uint64(math.Sqrt(float64(n)))
	for r*r < n {
		r++
	}
	for r > 0 && (r-1)*(r-1) >= n {
		r--
	}
	return r
}

// Plan is the layout of one baked map.
type Plan struct {
	VertexCount int
	Width       int
	GPUAligned  bool
}

func NewPlan(vertexCount int, gpuAligned bool) (Plan, error) {
	if vertexCount <= 0 {
		return Plan{}, ErrNoSamples
	}
	if uint64(vertexCount) > math.MaxUint32 {
		return Plan{}, fmt.Errorf("vertex count %d: %w", vertexCount, ErrInvalidWidth)
	}
	w, err := PlanWidth(uint32(vertexCount), gpuAligned)
	if err != nil {
		return Plan{}, err
	}
	return Plan{VertexCount: vertexCount, Width: int(w), GPUAligned: gpuAligned}, nil
}

// Slots is the number of texels in the map.
func (p Plan) Slots() int {
	return p.Width * p.Width
}

// Truncated is the number of trailing vertices that do not fit in the map.
// Always zero for CPU plans.
func (p Plan) Truncated() int {
	if d := p.VertexCount - p.Slots(); d > 0 {
		return d
	}
	return 0
}

// SourceIndex maps texel slot i to the vertex that fills it.
func (p Plan) SourceIndex(i int) int {
	return i % p.VertexCount
}

// Workgroups is the compute dispatch size for a GPU plan.
func (p Plan) Workgroups() (x, y uint32) {
	n := uint32(p.Width / GPUTile)
	return n, n
}
