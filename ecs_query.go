package sparkle

import (
	"reflect"
	"slices"
)

// Queries visit every entity whose archetype holds the listed component
// types. A type passed in optionals may be missing, in which case the
// callback receives nil for it. Returning false from the callback stops
// the iteration. Within an archetype entities are visited in ascending id
// order.
type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }

func MakeQuery1[A any](cmd *Commands) Query1[A]       { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B] { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] {
	return Query3[A, B, C]{ecs: cmd.app.ecs}
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	ida := idOf[A](q.ecs)
	opt := optionalIds(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		as, ok := column[A](arch, ida, opt)
		if !ok || as == nil {
			continue
		}
		for _, e := range sortedEntities(arch) {
			if !m(e.id, at(as, e.row)) {
				return
			}
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	ida, idb := idOf[A](q.ecs), idOf[B](q.ecs)
	opt := optionalIds(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		as, okA := column[A](arch, ida, opt)
		bs, okB := column[B](arch, idb, opt)
		if !okA || !okB || (as == nil && bs == nil) {
			continue
		}
		for _, e := range sortedEntities(arch) {
			if !m(e.id, at(as, e.row), at(bs, e.row)) {
				return
			}
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	ida, idb, idc := idOf[A](q.ecs), idOf[B](q.ecs), idOf[C](q.ecs)
	opt := optionalIds(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		as, okA := column[A](arch, ida, opt)
		bs, okB := column[B](arch, idb, opt)
		cs, okC := column[C](arch, idc, opt)
		if !okA || !okB || !okC || (as == nil && bs == nil && cs == nil) {
			continue
		}
		for _, e := range sortedEntities(arch) {
			if !m(e.id, at(as, e.row), at(bs, e.row), at(cs, e.row)) {
				return
			}
		}
	}
}

// column returns the archetype's slice for id. A missing optional column
// yields (nil, true); a missing required one yields (nil, false).
func column[T any](arch *archetype, id componentId, opt set[componentId]) ([]T, bool) {
	if data, ok := arch.componentData[id]; ok {
		return data.([]T), true
	}
	_, optional := opt[id]
	return nil, optional
}

func at[T any](data []T, r row) *T {
	if data == nil {
		return nil
	}
	return &data[r]
}

type entityRow struct {
	id  EntityId
	row row
}

func sortedEntities(arch *archetype) []entityRow {
	out := make([]entityRow, 0, len(arch.entities))
	for id, r := range arch.entities {
		out = append(out, entityRow{id: id, row: r})
	}
	slices.SortFunc(out, func(a, b entityRow) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return out
}

func idOf[T any](ecs *Ecs) componentId {
	return ecs.componentIdOf(reflect.TypeFor[T]())
}

func optionalIds(ecs *Ecs, components ...any) set[componentId] {
	res := make(set[componentId], len(components))
	for _, c := range components {
		res[ecs.componentIdOf(componentType(c))] = struct{}{}
	}
	return res
}
