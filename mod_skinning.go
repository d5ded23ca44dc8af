package sparkle

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const maxInfluences = 4

// SkinnedMeshComponent deforms a mesh asset by a joint pose. Joints and
// Weights hold up to four influences per vertex; Pose holds the current
// model-space joint matrices and InverseBindPoses their bind inverses.
//
// After skinningSystem runs the component is a read-only snapshot of the
// deformed vertices and can be handed to the bakers as a mesh source.
type SkinnedMeshComponent struct {
	Mesh             AssetId
	Joints           [][maxInfluences]uint16
	Weights          [][maxInfluences]float32
	InverseBindPoses []mgl32.Mat4
	Pose             []mgl32.Mat4

	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	uvs       []mgl32.Vec2
	source    uuid.UUID
	readable  bool
	jointMats []mgl32.Mat4
}

func (s *SkinnedMeshComponent) Readable() bool          { return s.readable }
func (s *SkinnedMeshComponent) Positions() []mgl32.Vec3 { return s.positions }
func (s *SkinnedMeshComponent) Normals() []mgl32.Vec3   { return s.normals }
func (s *SkinnedMeshComponent) UVs() []mgl32.Vec2       { return s.uvs }

// Source is the identity of the mesh asset the last snapshot came from,
// or uuid.Nil before the first one.
func (s *SkinnedMeshComponent) Source() uuid.UUID { return s.source }

// SkinningModule refreshes skinned snapshots in PreUpdate so effects see
// this frame's pose.
type SkinningModule struct{}

func (SkinningModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(skinningSystem).InStage(PreUpdate))
}

func skinningSystem(cmd *Commands, assets *AssetServer) {
	MakeQuery1[SkinnedMeshComponent](cmd).Map(func(eid EntityId, skin *SkinnedMeshComponent) bool {
		mesh, ok := assets.Mesh(skin.Mesh)
		if !ok {
			skin.clear()
			return true
		}
		skin.skin(mesh)
		return true
	})
}

func (s *SkinnedMeshComponent) clear() {
	s.positions = s.positions[:0]
	s.normals = s.normals[:0]
	s.uvs = nil
	s.source = uuid.Nil
	s.readable = false
}

// skin writes the linear blend of the rest pose into the snapshot. A vertex
// without influences, or whose weights sum to zero, keeps its rest values.
func (s *SkinnedMeshComponent) skin(mesh *MeshAsset) {
	rest := mesh.Positions()
	restNormals := mesh.Normals()
	n := len(rest)

	s.positions = resizeVec3(s.positions, n)
	s.normals = resizeVec3(s.normals, len(restNormals))
	s.uvs = mesh.UVs()
	s.source = mesh.Identity()
	s.readable = mesh.Readable()

	s.updateJointMatrices()

	for i := 0; i < n; i++ {
		m, ok := s.blend(i)
		if !ok {
			s.positions[i] = rest[i]
			if i < len(restNormals) {
				s.normals[i] = restNormals[i]
			}
			continue
		}
		s.positions[i] = m.Mul4x1(rest[i].Vec4(1)).Vec3()
		if i < len(restNormals) {
			nrm := m.Mat3().Mul3x1(restNormals[i])
			if nrm.Len() > 0 {
				nrm = nrm.Normalize()
			}
			s.normals[i] = nrm
		}
	}
	for i := n; i < len(restNormals); i++ {
		s.normals[i] = restNormals[i]
	}
}

func (s *SkinnedMeshComponent) updateJointMatrices() {
	s.jointMats = s.jointMats[:0]
	for j, pose := range s.Pose {
		if j < len(s.InverseBindPoses) {
			pose = pose.Mul4(s.InverseBindPoses[j])
		}
		s.jointMats = append(s.jointMats, pose)
	}
}

func (s *SkinnedMeshComponent) blend(i int) (mgl32.Mat4, bool) {
	if i >= len(s.Joints) || i >= len(s.Weights) || len(s.jointMats) == 0 {
		return mgl32.Mat4{}, false
	}
	var m mgl32.Mat4
	var total float32
	for k := 0; k < maxInfluences; k++ {
		w := s.Weights[i][k]
		j := int(s.Joints[i][k])
		if w == 0 || j >= len(s.jointMats) {
			continue
		}
		m = m.Add(s.jointMats[j].Mul(w))
		total += w
	}
	if total == 0 {
		return mgl32.Mat4{}, false
	}
	if total != 1 {
		m = m.Mul(1 / total)
	}
	return m, true
}

func resizeVec3(s []mgl32.Vec3, n int) []mgl32.Vec3 {
	if cap(s) < n {
		return make([]mgl32.Vec3, n)
	}
	return s[:n]
}
