package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsStale(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.False(t, IsStale(a, a, b, b))
	assert.True(t, IsStale(a, b, b, b))
	assert.True(t, IsStale(a, a, a, b))
	assert.False(t, IsStale(uuid.Nil, uuid.Nil, uuid.Nil, uuid.Nil))
}

func TestBakeIdentity_Transitions(t *testing.T) {
	var id BakeIdentity
	mesh, filter := uuid.New(), uuid.New()

	assert.Equal(t, Unbaked, id.State())
	assert.True(t, id.Stale(mesh, filter), "never baked")

	id.Record(mesh, filter)
	assert.Equal(t, Baked, id.State())
	assert.False(t, id.Stale(mesh, filter))

	other := uuid.New()
	assert.True(t, id.Stale(other, filter))
	assert.True(t, id.Stale(mesh, other))

	id.MarkDirty()
	assert.True(t, id.Stale(mesh, filter))
	assert.Equal(t, Baked, id.State())

	id.Record(other, filter)
	assert.False(t, id.Stale(other, filter))
	assert.Equal(t, other, id.Mesh())
	assert.Equal(t, filter, id.Aux())
}

func TestBakeIdentity_FailedBakeStaysStale(t *testing.T) {
	var id BakeIdentity
	mesh := uuid.New()
	// a failed bake never calls Record
	assert.True(t, id.Stale(mesh, uuid.Nil))
	assert.True(t, id.Stale(mesh, uuid.Nil))
}
