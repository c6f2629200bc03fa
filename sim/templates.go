package sim

import (
	_ "embed"
)

//go:embed assets/quad_vs.wgsl
var quadVertexTemplate string

//go:embed assets/simulation_vs.wgsl
var simulationVertexTemplate string

//go:embed assets/simulation_fs.wgsl
var simulationFragmentTemplate string

//go:embed assets/rsm_gather.wgsl
var rsmGatherTemplate string

//go:embed assets/depth_fs.wgsl
var depthFragmentTemplate string

//go:embed assets/oversample_fs.wgsl
var oversampleFragmentTemplate string

//go:embed assets/pmd_dignum_fs.wgsl
var pmdDigNumFragmentTemplate string

//go:embed assets/rgb_result_fs.wgsl
var rgbResultFragmentTemplate string

//go:embed assets/pmd_result_fs.wgsl
var pmdResultFragmentTemplate string

//go:embed assets/pmd_coordinates_fs.wgsl
var pmdCoordinatesFragmentTemplate string

//go:embed assets/srgb_fs.wgsl
var srgbFragmentTemplate string

//go:embed assets/lensdist_fs.wgsl
var lensDistortionFragmentTemplate string
