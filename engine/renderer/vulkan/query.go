package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rendercore/engine/renderer/gpu"
)

// occlusionSegments bounds how many render pass instances one occlusion
// query can span. Counts are summed over the segments used.
const occlusionSegments = 8

type query struct {
	d    *Device
	kind gpu.QueryKind
	pool vk.QueryPool
	size uint32

	// serial is the submission that carries the end of the query, zero
	// until EndQuery.
	serial uint64
	// segments used by the last occlusion query, and whether it ran out.
	used     uint32
	overflow bool
	active   bool
	inPass   bool
	results  [occlusionSegments]uint64
}

func (q *query) Release() {
	if q.pool == nil {
		return
	}
	d, pool := q.d, q.pool
	q.pool = nil
	d.destroyLater(func() { vk.DestroyQueryPool(d.device, pool, nil) })
}

func (d *Device) CreateQuery(kind gpu.QueryKind) (gpu.Query, error) {
	q := &query{d: d, kind: kind}
	info := vk.QueryPoolCreateInfo{SType: vk.StructureTypeQueryPoolCreateInfo}
	switch kind {
	case gpu.QueryTimer:
		if !d.caps.TimestampQuery {
			return nil, gpu.Check("CreateQuery", gpu.Unsupported)
		}
		info.QueryType = vk.QueryTypeTimestamp
		q.size = 2
	case gpu.QueryOcclusion:
		info.QueryType = vk.QueryTypeOcclusion
		q.size = occlusionSegments
	default:
		return nil, gpu.Check("CreateQuery", gpu.InvalidArg)
	}
	info.QueryCount = q.size
	if res := vk.CreateQueryPool(d.device, &info, nil, &q.pool); res != vk.Success {
		return nil, check("vkCreateQueryPool", res)
	}
	return q, nil
}

func (c *Context) BeginQuery(gq gpu.Query) {
	q, ok := gq.(*query)
	if !ok || q.pool == nil || !c.begin() {
		return
	}
	c.endPass()
	vk.CmdResetQueryPool(c.cmd(), q.pool, 0, q.size)
	q.serial = 0
	q.used = 0
	q.overflow = false
	switch q.kind {
	case gpu.QueryTimer:
		vk.CmdWriteTimestamp(c.cmd(), vk.PipelineStageTopOfPipeBit, q.pool, 0)
	case gpu.QueryOcclusion:
		q.active = true
		c.occlusion = q
	}
}

func (c *Context) EndQuery(gq gpu.Query) {
	q, ok := gq.(*query)
	if !ok || q.pool == nil || !c.begin() {
		return
	}
	switch q.kind {
	case gpu.QueryTimer:
		vk.CmdWriteTimestamp(c.cmd(), vk.PipelineStageBottomOfPipeBit, q.pool, 1)
	case gpu.QueryOcclusion:
		c.suspendOcclusion()
		q.active = false
		if c.occlusion == q {
			c.occlusion = nil
		}
	}
	q.serial = c.serial + 1
}

// resumeOcclusion opens a new segment of the active occlusion query inside
// the current render pass.
func (c *Context) resumeOcclusion() {
	q := c.occlusion
	if q == nil || q.inPass {
		return
	}
	if q.used == q.size {
		q.overflow = true
		return
	}
	var flags vk.QueryControlFlags
	if c.d.pd.features.OcclusionQueryPrecise == vk.True {
		flags = vk.QueryControlFlags(vk.QueryControlPreciseBit)
	}
	vk.CmdBeginQuery(c.cmd(), q.pool, q.used, flags)
	q.inPass = true
}

// suspendOcclusion closes the open segment. Queries cannot span render
// pass instances.
func (c *Context) suspendOcclusion() {
	q := c.occlusion
	if q == nil || !q.inPass {
		return
	}
	vk.CmdEndQuery(c.cmd(), q.pool, q.used)
	q.used++
	q.inPass = false
}

// GetQueryData never waits on the GPU. flush submits the recorded commands
// when the query has not reached the queue yet.
func (c *Context) GetQueryData(gq gpu.Query, flush bool) (gpu.QueryResult, gpu.Code) {
	q, ok := gq.(*query)
	if !ok || q.pool == nil {
		return gpu.QueryResult{}, gpu.InvalidArg
	}
	if code := c.d.Status(); code != gpu.OK {
		return gpu.QueryResult{}, code
	}
	if q.serial == 0 {
		return gpu.QueryResult{}, gpu.WasStillDrawing
	}
	if q.serial > c.serial {
		if !flush {
			return gpu.QueryResult{}, gpu.WasStillDrawing
		}
		if code := c.Flush(); code != gpu.OK {
			return gpu.QueryResult{}, code
		}
	}

	count := q.size
	if q.kind == gpu.QueryOcclusion {
		count = q.used
		if count == 0 {
			// Nothing was drawn while the query was open.
			return gpu.QueryResult{}, gpu.OK
		}
	}
	res := vk.GetQueryPoolResults(c.d.device, q.pool, 0, count,
		uint64(count)*8, unsafe.Pointer(&q.results[0]), 8,
		vk.QueryResultFlags(vk.QueryResult64Bit))
	if res != vk.Success {
		code := codeOf(res)
		if code.IsDeviceLost() {
			c.d.setStatus(code)
		}
		return gpu.QueryResult{}, code
	}

	switch q.kind {
	case gpu.QueryTimer:
		return gpu.QueryResult{
			Begin:     q.results[0],
			End:       q.results[1],
			Frequency: c.d.timestampFrequency,
		}, gpu.OK
	default:
		var samples uint64
		for _, n := range q.results[:count] {
			samples += n
		}
		if q.overflow && samples == 0 {
			samples = 1
		}
		return gpu.QueryResult{Samples: samples}, gpu.OK
	}
}
