package vulkan

// Statistics describes the real device memory allocations made from a single heap
type Statistics struct {
	BlockCount int
	BlockBytes int
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.BlockBytes += other.BlockBytes
}
