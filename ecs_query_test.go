package sparkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_Map(t *testing.T) {
	type Comp1 struct{ a int }
	type Comp2 struct{ b float32 }
	type Comp3 struct{}

	ecs := MakeEcs()
	ecs.addEntity(Comp1{a: 1})                                 // comp1 only                       -- shouldn't match
	id2 := ecs.addEntity(Comp1{a: 2}, Comp2{b: 1.37})          // comp1 & comp2                    -- should match
	id3 := ecs.addEntity(Comp1{a: 3}, Comp2{b: 4.20}, Comp3{}) // comp1 & comp2 + something extra  -- should match
	ecs.addEntity(Comp1{a: 4}, Comp3{})                        // comp1 + something extra          -- shouldn't match
	ecs.addEntity(Comp2{b: 3.14})                              // comp2 only                       -- shouldn't match

	query := Query2[Comp1, Comp2]{ecs: &ecs}

	got := map[EntityId]int{}
	query.Map(func(entityId EntityId, comp1 *Comp1, comp2 *Comp2) bool {
		got[entityId] = comp1.a
		return true
	})
	assert.Equal(t, map[EntityId]int{id2: 2, id3: 3}, got)
}

func TestQuery_MapMutates(t *testing.T) {
	type Counter struct{ n int }

	ecs := MakeEcs()
	e := ecs.addEntity(Counter{})
	q := Query1[Counter]{ecs: &ecs}
	for i := 0; i < 3; i++ {
		q.Map(func(_ EntityId, c *Counter) bool {
			c.n++
			return true
		})
	}
	assert.Equal(t, 3, ecs.component(e, typeOf[Counter]()).Interface().(*Counter).n)
}

func TestQuery_Optionals(t *testing.T) {
	type Mesh struct{ name string }
	type Filter struct{ name string }
	type Extra struct{}

	ecs := MakeEcs()
	a := ecs.addEntity(Mesh{name: "a"})
	b := ecs.addEntity(Mesh{name: "b"}, Filter{name: "fb"})
	ecs.addEntity(Extra{})

	seen := map[EntityId]bool{}
	Query2[Mesh, Filter]{ecs: &ecs}.Map(func(id EntityId, m *Mesh, f *Filter) bool {
		seen[id] = f != nil
		return true
	}, Filter{})

	assert.Equal(t, map[EntityId]bool{a: false, b: true}, seen)
}

func TestQuery_StopEarly(t *testing.T) {
	type C struct{}

	ecs := MakeEcs()
	for i := 0; i < 5; i++ {
		ecs.addEntity(C{})
	}
	visits := 0
	Query1[C]{ecs: &ecs}.Map(func(EntityId, *C) bool {
		visits++
		return visits < 2
	})
	assert.Equal(t, 2, visits)
}

func TestQuery3_Map(t *testing.T) {
	type A struct{ v int }
	type B struct{ v int }
	type C struct{ v int }

	ecs := MakeEcs()
	ecs.addEntity(A{1}, B{2})
	e := ecs.addEntity(A{1}, B{2}, C{3})

	var ids []EntityId
	Query3[A, B, C]{ecs: &ecs}.Map(func(id EntityId, a *A, b *B, c *C) bool {
		ids = append(ids, id)
		assert.Equal(t, 6, a.v+b.v+c.v)
		return true
	})
	assert.Equal(t, []EntityId{e}, ids)
}
