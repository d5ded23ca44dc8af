package core

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// MeshSource is anything that exposes per-vertex arrays.
type MeshSource interface {
	Readable() bool
	Positions() []mgl32.Vec3
	Normals() []mgl32.Vec3
	UVs() []mgl32.Vec2
}

// AttributeSet is a snapshot of a mesh's vertex attributes taken at bake time.
// Positions and normals share a count; UVs may differ.
type AttributeSet struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
}

// Extract copies the vertex arrays out of src.
func Extract(src MeshSource) (AttributeSet, error) {
	if src == nil || !src.Readable() {
		return AttributeSet{}, ErrNotReadable
	}
	return AttributeSet{
		Positions: slices.Clone(src.Positions()),
		Normals:   slices.Clone(src.Normals()),
		UVs:       slices.Clone(src.UVs()),
	}, nil
}

// VertexCount is the position count, the N of the position and normal maps.
func (s AttributeSet) VertexCount() int {
	return len(s.Positions)
}

// Samples returns the attribute as 3D samples. UVs become (u, v, 0).
func (s AttributeSet) Samples(kind AttributeKind) []mgl32.Vec3 {
	switch kind {
	case AttributePosition:
		return s.Positions
	case AttributeNormal:
		return s.Normals
	case AttributeUV:
		out := make([]mgl32.Vec3, len(s.UVs))
		for i, uv := range s.UVs {
			out[i] = mgl32.Vec3{uv.X(), uv.Y(), 0}
		}
		return out
	}
	return nil
}
