package core

import "github.com/google/uuid"

// IsStale reports whether either tracked identity changed since the last bake.
func IsStale(currentMesh, lastMesh, currentAux, lastAux uuid.UUID) bool {
	return currentMesh != lastMesh || currentAux != lastAux
}

type BakeState uint8

const (
	Unbaked BakeState = iota
	Baked
)

func (s BakeState) String() string {
	if s == Baked {
		return "baked"
	}
	return "unbaked"
}

// BakeIdentity remembers the resources the current maps were baked from.
// The owner calls Record only after a bake succeeded.
type BakeIdentity struct {
	mesh  uuid.UUID
	aux   uuid.UUID
	state BakeState
	dirty bool
}

// Stale is true before the first bake, after MarkDirty, or when either
// identity differs from the recorded one.
func (b *BakeIdentity) Stale(mesh, aux uuid.UUID) bool {
	if b.state == Unbaked || b.dirty {
		return true
	}
	return IsStale(mesh, b.mesh, aux, b.aux)
}

func (b *BakeIdentity) Record(mesh, aux uuid.UUID) {
	b.mesh = mesh
	b.aux = aux
	b.state = Baked
	b.dirty = false
}

// MarkDirty forces the next Stale check to report true.
func (b *BakeIdentity) MarkDirty() {
	b.dirty = true
}

func (b *BakeIdentity) State() BakeState { return b.state }

func (b *BakeIdentity) Mesh() uuid.UUID { return b.mesh }
func (b *BakeIdentity) Aux() uuid.UUID  { return b.aux }
