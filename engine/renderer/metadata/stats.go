package metadata

import "time"

type ViewStats struct {
	Name    string
	View    uint8
	CPUTime time.Duration
	GPUTime time.Duration
}

type CacheStats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats is the per-frame diagnostics record the backend publishes.
type Stats struct {
	DeviceID string
	FrameNum uint64

	CPUTime      time.Duration
	GPUTime      time.Duration
	GPUTimeBegin uint64
	GPUTimeEnd   uint64
	GPUFrequency uint64
	WaitSubmit   time.Duration
	WaitRender   time.Duration

	NumDraw    uint32
	NumCompute uint32
	NumBlit    uint32
	NumSkipped uint32

	NumPrimsSubmitted [TopologyCount]uint32
	NumPrimsRendered  [TopologyCount]uint32
	NumInstances      [TopologyCount]uint32
	NumIndices        uint32

	BlendStates        CacheStats
	DepthStencilStates CacheStats
	RasterizerStates   CacheStats
	SamplerStates      CacheStats
	InputLayouts       CacheStats
	ResourceViews      CacheStats

	PendingTimerQueries     int
	PendingOcclusionQueries int

	Width  uint32
	Height uint32

	Views []ViewStats
}

// TotalPrimsRendered sums rendered primitives over every topology.
func (s *Stats) TotalPrimsRendered() uint32 {
	var n uint32
	for _, p := range s.NumPrimsRendered {
		n += p
	}
	return n
}
