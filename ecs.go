package sparkle

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"reflect"
	"slices"
)

type EntityId uint64
type archetypeId uint64
type archetypeKey []componentId
type componentId uint32
type row int
type set[T comparable] = map[T]struct{}

// Ecs stores components in archetype tables: one typed slice per component
// type, one row per entity. It is not safe for concurrent use.
type Ecs struct {
	archetypes  map[archetypeId]*archetype
	entityIndex map[EntityId]archetypeId
	nextId      EntityId

	componentIds   map[reflect.Type]componentId
	componentTypes []reflect.Type
}

func MakeEcs() Ecs {
	return Ecs{
		archetypes:   make(map[archetypeId]*archetype),
		entityIndex:  make(map[EntityId]archetypeId),
		componentIds: make(map[reflect.Type]componentId),
	}
}

type archetype struct {
	id            archetypeId
	key           archetypeKey
	entities      map[EntityId]row
	componentData map[componentId]any // []T, built through reflection
	recycled      []row
}

func (ecs *Ecs) addEntity(components ...any) EntityId {
	return ecs.insertEntity(ecs.nextEntityId(), components...)
}

func (ecs *Ecs) insertEntity(entityId EntityId, components ...any) EntityId {
	archId, arch := ecs.getOrMakeArchetype(ecs.keyOf(components...))

	r := ecs.reserveRow(arch)
	arch.entities[entityId] = r
	for _, component := range components {
		ecs.writeComponent(arch, r, component)
	}
	ecs.entityIndex[entityId] = archId
	return entityId
}

func (ecs *Ecs) hasEntity(entityId EntityId) bool {
	_, ok := ecs.entityIndex[entityId]
	return ok
}

func (ecs *Ecs) entityCount() int {
	return len(ecs.entityIndex)
}

func (ecs *Ecs) removeEntity(entityId EntityId) {
	if !ecs.hasEntity(entityId) {
		return
	}
	ecs.detach(entityId)
}

func (ecs *Ecs) addComponents(entityId EntityId, components ...any) {
	srcArch, srcRow, ok := ecs.locate(entityId)
	if !ok {
		return
	}

	dstKey := mergeKeys(srcArch.key, ecs.keyOf(components...))
	dstArchId, dstArch := ecs.getOrMakeArchetype(dstKey)
	dstRow := ecs.reserveRow(dstArch)

	ecs.moveComponents(srcArch, srcRow, dstArch, dstRow)
	for _, component := range components {
		ecs.writeComponent(dstArch, dstRow, component)
	}
	ecs.detach(entityId)

	dstArch.entities[entityId] = dstRow
	ecs.entityIndex[entityId] = dstArchId
}

func (ecs *Ecs) removeComponents(entityId EntityId, components ...any) {
	srcArch, srcRow, ok := ecs.locate(entityId)
	if !ok {
		return
	}

	drop := make(set[componentId])
	for _, c := range components {
		drop[ecs.componentIdOf(componentType(c))] = struct{}{}
	}
	var dstKey archetypeKey
	for _, id := range srcArch.key {
		if _, gone := drop[id]; !gone {
			dstKey = append(dstKey, id)
		}
	}
	if len(dstKey) == len(srcArch.key) {
		return
	}

	dstArchId, dstArch := ecs.getOrMakeArchetype(dstKey)
	dstRow := ecs.reserveRow(dstArch)
	ecs.moveComponents(srcArch, srcRow, dstArch, dstRow)
	ecs.detach(entityId)

	dstArch.entities[entityId] = dstRow
	ecs.entityIndex[entityId] = dstArchId
}

// component returns a pointer to the entity's component of type t, or
// an invalid Value when the entity lacks it.
func (ecs *Ecs) component(entityId EntityId, t reflect.Type) reflect.Value {
	arch, r, ok := ecs.locate(entityId)
	if !ok {
		return reflect.Value{}
	}
	id, known := ecs.componentIds[t]
	if !known {
		return reflect.Value{}
	}
	data, has := arch.componentData[id]
	if !has {
		return reflect.Value{}
	}
	return columnAt(data, r).Addr()
}

func (ecs *Ecs) locate(entityId EntityId) (*archetype, row, bool) {
	archId, ok := ecs.entityIndex[entityId]
	if !ok {
		return nil, 0, false
	}
	arch := ecs.archetypes[archId]
	return arch, arch.entities[entityId], true
}

// moveComponents copies every component both archetypes have in common.
func (ecs *Ecs) moveComponents(srcArch *archetype, srcRow row, dstArch *archetype, dstRow row) {
	for _, id := range srcArch.key {
		dst, ok := dstArch.componentData[id]
		if !ok {
			continue
		}
		columnPut(dst, dstRow, columnAt(srcArch.componentData[id], srcRow))
	}
}

func (ecs *Ecs) writeComponent(dstArch *archetype, dstRow row, component any) {
	value := reflect.ValueOf(component)
	if value.Kind() == reflect.Pointer {
		value = value.Elem()
	}
	id := ecs.componentIdOf(componentType(component))
	columnPut(dstArch.componentData[id], dstRow, value)
}

// detach frees the entity's row and forgets where it lived. The row's
// contents are zeroed so released components do not keep references alive.
func (ecs *Ecs) detach(entityId EntityId) {
	arch, r, ok := ecs.locate(entityId)
	if !ok {
		return
	}
	for _, id := range arch.key {
		columnClear(arch.componentData[id], r)
	}
	arch.recycled = append(arch.recycled, r)
	delete(arch.entities, entityId)
	delete(ecs.entityIndex, entityId)
}

func (ecs *Ecs) getOrMakeArchetype(key archetypeKey) (archetypeId, *archetype) {
	id := hashKey(key)
	if arch, ok := ecs.archetypes[id]; ok {
		return id, arch
	}

	arch := &archetype{
		id:            id,
		key:           key,
		entities:      make(map[EntityId]row),
		componentData: make(map[componentId]any, len(key)),
	}
	for _, cid := range key {
		arch.componentData[cid] = newColumn(ecs.componentTypes[cid])
	}
	ecs.archetypes[id] = arch
	return id, arch
}

func (ecs *Ecs) reserveRow(arch *archetype) row {
	if n := len(arch.recycled); n > 0 {
		r := arch.recycled[n-1]
		arch.recycled = arch.recycled[:n-1]
		return r
	}

	r := row(arch.rows())
	for _, cid := range arch.key {
		arch.componentData[cid] = columnGrow(arch.componentData[cid])
	}
	return r
}

func (arch *archetype) rows() int {
	for _, data := range arch.componentData {
		return columnLen(data)
	}
	return len(arch.entities) + len(arch.recycled)
}

// keyOf returns the sorted, de-duplicated component ids of components.
// Archetypes are identified by a hash of that key.
func (ecs *Ecs) keyOf(components ...any) archetypeKey {
	key := make(archetypeKey, 0, len(components))
	for _, c := range components {
		key = append(key, ecs.componentIdOf(componentType(c)))
	}
	return normalizeKey(key)
}

func componentType(component any) reflect.Type {
	t := reflect.TypeOf(component)
	if t == nil {
		panic("component must not be nil")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic(fmt.Errorf("expected component to be a struct or a pointer to a struct, got %s", t.Kind()))
	}
	return t
}

func mergeKeys(a, b archetypeKey) archetypeKey {
	return normalizeKey(append(slices.Clone(a), b...))
}

func normalizeKey(key archetypeKey) archetypeKey {
	slices.Sort(key)
	return slices.Compact(key)
}

func hashKey(key archetypeKey) archetypeId {
	hash := fnv.New64a()
	var b [4]byte
	for _, cid := range key {
		binary.LittleEndian.PutUint32(b[:], uint32(cid))
		hash.Write(b[:])
	}
	return archetypeId(hash.Sum64())
}

func (ecs *Ecs) nextEntityId() EntityId {
	id := ecs.nextId
	ecs.nextId++
	return id
}

func (ecs *Ecs) componentIdOf(t reflect.Type) componentId {
	if id, ok := ecs.componentIds[t]; ok {
		return id
	}
	id := componentId(len(ecs.componentTypes))
	ecs.componentIds[t] = id
	ecs.componentTypes = append(ecs.componentTypes, t)
	return id
}
