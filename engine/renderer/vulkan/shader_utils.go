package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

const shaderEntryPoint = "main\x00"

// program holds the SPIR-V modules of a graphics or compute program.
type program struct {
	d       *Device
	vs, fs  vk.ShaderModule
	cs      vk.ShaderModule
	compute vk.Pipeline
}

func (p *program) Release() {
	d := p.d
	d.pipelines.evict(func(k pipelineKey) bool { return k.program == p })
	modules := []vk.ShaderModule{p.vs, p.fs, p.cs}
	compute := p.compute
	p.vs, p.fs, p.cs, p.compute = nil, nil, nil, nil
	d.destroyLater(func() {
		if compute != nil {
			vk.DestroyPipeline(d.device, compute, nil)
		}
		for _, m := range modules {
			if m != nil {
				vk.DestroyShaderModule(d.device, m, nil)
			}
		}
	})
}

func (p *program) stages() []vk.PipelineShaderStageCreateInfo {
	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: p.vs,
		PName:  shaderEntryPoint,
	}}
	if p.fs != nil {
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: p.fs,
			PName:  shaderEntryPoint,
		})
	}
	return stages
}

func (d *Device) newShaderModule(code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, gpu.Check("CreateShaderModule", gpu.InvalidArg)
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}
	var m vk.ShaderModule
	if res := vk.CreateShaderModule(d.device, &info, nil, &m); res != vk.Success {
		return nil, check("vkCreateShaderModule", res)
	}
	return m, nil
}

// CreateProgram builds a program from vertex and fragment SPIR-V. fs may be
// empty for depth only programs.
func (d *Device) CreateProgram(vs, fs []byte) (gpu.Program, error) {
	p := &program{d: d}
	var err error
	if p.vs, err = d.newShaderModule(vs); err != nil {
		return nil, err
	}
	if len(fs) > 0 {
		if p.fs, err = d.newShaderModule(fs); err != nil {
			vk.DestroyShaderModule(d.device, p.vs, nil)
			return nil, err
		}
	}
	return p, nil
}

func (d *Device) CreateComputeProgram(cs []byte) (gpu.Program, error) {
	if !d.caps.Compute {
		return nil, gpu.Check("CreateComputeProgram", gpu.Unsupported)
	}
	p := &program{d: d}
	var err error
	if p.cs, err = d.newShaderModule(cs); err != nil {
		return nil, err
	}
	info := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: p.cs,
			PName:  shaderEntryPoint,
		},
		Layout: d.pipelineLayout,
	}
	out := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(d.device, d.pipelineCache, 1, []vk.ComputePipelineCreateInfo{info}, nil, out); res != vk.Success {
		vk.DestroyShaderModule(d.device, p.cs, nil)
		return nil, check("vkCreateComputePipelines", res)
	}
	p.compute = out[0]
	return p, nil
}
