package shaders

import (
	_ "embed"
)

// BakePositionsWGSL fills an rgba32float storage texture from a packed
// vertex position buffer. Entry point "bake_positions", 8x8 workgroups.
//
//go:embed bake_positions.wgsl
var BakePositionsWGSL string

const BakePositionsEntryPoint = "bake_positions"
