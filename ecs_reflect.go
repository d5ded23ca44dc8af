package sparkle

import (
	"reflect"
)

// A column is the []T holding one component type of an archetype, kept as
// any so archetypes can mix types. Rows are indexes into it.

func newColumn(elem reflect.Type) any {
	return reflect.MakeSlice(reflect.SliceOf(elem), 0, 4).Interface()
}

func columnLen(col any) int {
	return reflect.ValueOf(col).Len()
}

// columnAt returns the addressable element at r.
func columnAt(col any, r row) reflect.Value {
	return reflect.ValueOf(col).Index(int(r))
}

func columnPut(col any, r row, v reflect.Value) {
	columnAt(col, r).Set(v)
}

// columnClear zeroes the element at r.
func columnClear(col any, r row) {
	cell := columnAt(col, r)
	cell.Set(reflect.Zero(cell.Type()))
}

// columnGrow appends a zero element and returns the possibly reallocated
// column.
func columnGrow(col any) any {
	v := reflect.ValueOf(col)
	return reflect.Append(v, reflect.Zero(v.Type().Elem())).Interface()
}
