package shaders

import (
	_ "embed"
)

//go:embed integrate.wgsl
var IntegrateWGSL string

//go:embed points.wgsl
var PointsWGSL string
