package core

import "errors"

var (
	// ErrNotReadable is returned when a mesh does not allow its vertex data to be read.
	ErrNotReadable = errors.New("mesh is not readable")

	// ErrNoSamples is returned when there is nothing to bake (zero vertices, zero UVs).
	ErrNoSamples = errors.New("no samples to bake")

	// ErrInvalidWidth is returned when a map width is zero or negative.
	ErrInvalidWidth = errors.New("invalid map width")

	// ErrGPUWidthZero is returned when aligning the width to the 8x8 workgroup
	// tile rounds it down to zero (fewer than 50 vertices).
	ErrGPUWidthZero = errors.New("gpu aligned width rounds to zero")
)
