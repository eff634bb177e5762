package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/crystal"
	"github.com/gekko3d/crystal/gpu/shaders"
)

const depthFormat = wgpu.TextureFormatDepth24Plus

const (
	paramsSize = 16 // delta_time, count, two pad words
	cameraSize = 80 // mat4x4 + vec4
	vec3Size   = 12
)

// MaxWorkgroupsPerDimension is the WebGPU default limit on dispatch size.
const MaxWorkgroupsPerDimension = 65535

type pipelines struct {
	integrateModule *wgpu.ShaderModule
	pointsModule    *wgpu.ShaderModule

	integrate *wgpu.ComputePipeline
	points    *wgpu.RenderPipeline
}

func (d *Device) diagnose(sev crystal.Severity, msg string) {
	d.observer.OnDiagnostic(crystal.Diagnostic{Source: "wgpu", Severity: sev, Message: msg})
}

func (d *Device) createPipelines() error {
	var err error
	p := &pipelines{}
	d.pipelines = p

	p.integrateModule, err = d.ctx.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Integrate CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.IntegrateWGSL},
	})
	if err != nil {
		d.diagnose(crystal.SeverityError, "integrate.wgsl: "+err.Error())
		return crystal.NewError(crystal.KernelCompileError, "integrate.wgsl", err)
	}
	p.pointsModule, err = d.ctx.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Points VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.PointsWGSL},
	})
	if err != nil {
		d.diagnose(crystal.SeverityError, "points.wgsl: "+err.Error())
		return crystal.NewError(crystal.KernelCompileError, "points.wgsl", err)
	}

	// Layout auto
	p.integrate, err = d.ctx.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Integrate Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     p.integrateModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		d.diagnose(crystal.SeverityError, "integrate pipeline: "+err.Error())
		return crystal.NewError(crystal.KernelLinkError, "integrate pipeline", err)
	}

	p.points, err = d.ctx.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Points Pipeline",
		Vertex: wgpu.VertexState{
			Module:     p.pointsModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: vec3Size,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{{
					Format:         wgpu.VertexFormatFloat32x3,
					Offset:         0,
					ShaderLocation: 0,
				}},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.pointsModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    d.ctx.surfaceConfig.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyPointList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare:     wgpu.CompareFunctionAlways,
				FailOp:      wgpu.StencilOperationKeep,
				DepthFailOp: wgpu.StencilOperationKeep,
				PassOp:      wgpu.StencilOperationKeep,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare:     wgpu.CompareFunctionAlways,
				FailOp:      wgpu.StencilOperationKeep,
				DepthFailOp: wgpu.StencilOperationKeep,
				PassOp:      wgpu.StencilOperationKeep,
			},
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		d.diagnose(crystal.SeverityError, "points pipeline: "+err.Error())
		return crystal.NewError(crystal.KernelLinkError, "points pipeline", err)
	}
	return nil
}

func (p *pipelines) release() {
	if p.points != nil {
		p.points.Release()
		p.points = nil
	}
	if p.integrate != nil {
		p.integrate.Release()
		p.integrate = nil
	}
	if p.pointsModule != nil {
		p.pointsModule.Release()
		p.pointsModule = nil
	}
	if p.integrateModule != nil {
		p.integrateModule.Release()
		p.integrateModule = nil
	}
}
