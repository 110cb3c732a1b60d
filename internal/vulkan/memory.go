package vulkan

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/loader"
	"github.com/vkngwrapper/extensions/v3/ext_memory_priority"
)

type MemoryCallbacks interface {
	Allocate(memoryType int, memory core1_0.DeviceMemory, size int)
	Free(memoryType int, memory core1_0.DeviceMemory, size int)
}

type MemoryOptions struct {
	AllocationCallbacks *loader.AllocationCallbacks
	MemoryCallbacks     MemoryCallbacks
	// One entry per memory heap, or empty. Entries <= 0 mean the heap is unlimited.
	HeapSizeLimits []int
}

// Memory is a single device memory allocation made through MemoryProperties
type Memory struct {
	handle        core1_0.DeviceMemory
	memoryType    int
	size          int
	propertyFlags core1_0.MemoryPropertyFlags
}

func (m Memory) Handle() core1_0.DeviceMemory {
	return m.handle
}

func (m Memory) MemoryType() int {
	return m.memoryType
}

func (m Memory) Size() int {
	return m.size
}

func (m Memory) PropertyFlags() core1_0.MemoryPropertyFlags {
	return m.propertyFlags
}

func (m Memory) HostVisible() bool {
	return m.propertyFlags&core1_0.MemoryPropertyHostVisible != 0
}

func (m Memory) Initialized() bool {
	return m.handle.Initialized()
}

type MemoryProperties struct {
	// Number of real allocations that have been made from each heap
	blockCount []int32
	// Size of real allocations that have been made from each heap
	blockBytes []int64
	// Number of live allocations across the whole device
	memoryCount uint32

	usePriority         bool
	allocationCallbacks *loader.AllocationCallbacks
	memoryCallbacks     MemoryCallbacks
	heapLimits          []int

	driver           core1_0.CoreDeviceDriver
	deviceProperties *core1_0.PhysicalDeviceProperties
	memoryProperties *core1_0.PhysicalDeviceMemoryProperties
}

func NewMemoryProperties(
	driver core1_0.CoreDeviceDriver,
	physicalDevice core1_0.PhysicalDevice,
	options MemoryOptions,
) (*MemoryProperties, error) {
	properties := &MemoryProperties{
		allocationCallbacks: options.AllocationCallbacks,
		memoryCallbacks:     options.MemoryCallbacks,
		usePriority:         driver.Device().IsDeviceExtensionActive(ext_memory_priority.ExtensionName),
		driver:              driver,
	}

	var err error
	properties.deviceProperties, err = driver.InstanceDriver().GetPhysicalDeviceProperties(physicalDevice)
	if err != nil {
		return nil, err
	}

	properties.memoryProperties = driver.InstanceDriver().GetPhysicalDeviceMemoryProperties(physicalDevice)

	heapCount := properties.MemoryHeapCount()
	if len(options.HeapSizeLimits) > 0 && len(options.HeapSizeLimits) != heapCount {
		return nil, errors.Newf("HeapSizeLimits has %d entries, but the PhysicalDevice has %d memory heaps", len(options.HeapSizeLimits), heapCount)
	}

	properties.heapLimits = make([]int, heapCount)
	copy(properties.heapLimits, options.HeapSizeLimits)
	properties.blockCount = make([]int32, heapCount)
	properties.blockBytes = make([]int64, heapCount)

	return properties, nil
}

func (m *MemoryProperties) MemoryHeapCount() int {
	return len(m.memoryProperties.MemoryHeaps)
}

func (m *MemoryProperties) MemoryTypeIndexToHeapIndex(memoryTypeIndex int) int {
	return m.memoryProperties.MemoryTypes[memoryTypeIndex].HeapIndex
}

func (m *MemoryProperties) DeviceProperties() *core1_0.PhysicalDeviceProperties {
	return m.deviceProperties
}

// SelectMemoryType returns the lowest memory type index whose bit is set in typeBits and whose
// property flags include every flag in requiredFlags.
func (m *MemoryProperties) SelectMemoryType(typeBits uint32, requiredFlags core1_0.MemoryPropertyFlags) (int, error) {
	for memTypeIndex, memType := range m.memoryProperties.MemoryTypes {
		memTypeBit := uint32(1 << memTypeIndex)
		if typeBits&memTypeBit == 0 {
			continue
		}

		if memType.PropertyFlags&requiredFlags != requiredFlags {
			continue
		}

		return memTypeIndex, nil
	}

	return -1, errors.Wrapf(ErrNoCompatibleMemoryType, "memory type bits %#x, required flags %s", typeBits, requiredFlags)
}

func (m *MemoryProperties) addBlockAllocation(heapIndex, allocationSize int) (common.VkResult, error) {
	limit := m.heapLimits[heapIndex]
	if limit <= 0 {
		atomic.AddInt64(&m.blockBytes[heapIndex], int64(allocationSize))
		atomic.AddInt32(&m.blockCount[heapIndex], 1)
		return core1_0.VKSuccess, nil
	}

	heapSize := m.memoryProperties.MemoryHeaps[heapIndex].Size
	if heapSize < limit {
		limit = heapSize
	}

	for {
		currentVal := atomic.LoadInt64(&m.blockBytes[heapIndex])
		targetVal := currentVal + int64(allocationSize)

		if targetVal > int64(limit) {
			return core1_0.VKErrorOutOfDeviceMemory, core1_0.VKErrorOutOfDeviceMemory.ToError()
		}

		if atomic.CompareAndSwapInt64(&m.blockBytes[heapIndex], currentVal, targetVal) {
			break
		}
	}

	atomic.AddInt32(&m.blockCount[heapIndex], 1)
	return core1_0.VKSuccess, nil
}

func (m *MemoryProperties) removeBlockAllocation(heapIndex, allocationSize int) {
	newVal := atomic.AddInt64(&m.blockBytes[heapIndex], int64(-allocationSize))
	if newVal < 0 {
		panic(fmt.Sprintf("block bytes for heapIndex %d went negative", heapIndex))
	}

	newCountVal := atomic.AddInt32(&m.blockCount[heapIndex], -1)
	if newCountVal < 0 {
		panic(fmt.Sprintf("block count for heapIndex %d went negative", heapIndex))
	}
}

// Allocate selects a memory type for the provided requirements and allocates a block of device memory
// of requirements.Size bytes from it. priority is only forwarded to the driver when ext_memory_priority
// is active on the device.
func (m *MemoryProperties) Allocate(
	requirements *core1_0.MemoryRequirements,
	requiredFlags core1_0.MemoryPropertyFlags,
	priority float32,
) (mem Memory, res common.VkResult, err error) {
	memoryTypeIndex, err := m.SelectMemoryType(requirements.MemoryTypeBits, requiredFlags)
	if err != nil {
		return Memory{}, core1_0.VKErrorFeatureNotPresent, err
	}

	newDeviceCount := atomic.AddUint32(&m.memoryCount, 1)
	defer func() {
		// If we failed out, roll back the device increment
		if err != nil {
			atomic.AddUint32(&m.memoryCount, ^uint32(0))
		}
	}()

	if int(newDeviceCount) > m.deviceProperties.Limits.MaxMemoryAllocationCount {
		return Memory{}, core1_0.VKErrorTooManyObjects, core1_0.VKErrorTooManyObjects.ToError()
	}

	heapIndex := m.MemoryTypeIndexToHeapIndex(memoryTypeIndex)
	res, err = m.addBlockAllocation(heapIndex, requirements.Size)
	if err != nil {
		return Memory{}, res, err
	}
	defer func() {
		// If we failed out, roll back the block allocation
		if err != nil {
			m.removeBlockAllocation(heapIndex, requirements.Size)
		}
	}()

	allocateInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	}
	if m.usePriority {
		allocateInfo.NextOptions = common.NextOptions{
			Next: ext_memory_priority.MemoryPriorityAllocateInfo{
				Priority: priority,
			},
		}
	}

	vulkanMem, res, err := m.driver.AllocateMemory(m.allocationCallbacks, allocateInfo)
	if err != nil {
		return Memory{}, res, err
	}

	if m.memoryCallbacks != nil {
		m.memoryCallbacks.Allocate(memoryTypeIndex, vulkanMem, requirements.Size)
	}

	return Memory{
		handle:        vulkanMem,
		memoryType:    memoryTypeIndex,
		size:          requirements.Size,
		propertyFlags: m.memoryProperties.MemoryTypes[memoryTypeIndex].PropertyFlags,
	}, res, nil
}

// FreeMemory returns memory allocated by Allocate to the device and updates the heap accounting
func (m *MemoryProperties) FreeMemory(memory core1_0.DeviceMemory, memoryType int, size int) {
	if m.memoryCallbacks != nil {
		m.memoryCallbacks.Free(memoryType, memory, size)
	}

	m.driver.FreeMemory(memory, m.allocationCallbacks)

	m.removeBlockAllocation(m.MemoryTypeIndexToHeapIndex(memoryType), size)
	atomic.AddUint32(&m.memoryCount, ^uint32(0))
}

func (m *MemoryProperties) Free(memory Memory) {
	if !memory.Initialized() {
		return
	}

	m.FreeMemory(memory.handle, memory.memoryType, memory.size)
}

// Map maps the whole allocation into host memory. The allocation must be host-visible.
func (m *MemoryProperties) Map(memory Memory) ([]byte, error) {
	if !memory.HostVisible() {
		return nil, errors.Newf("memory type %d is not host-visible", memory.memoryType)
	}

	ptr, _, err := m.driver.MapMemory(memory.handle, 0, memory.size, 0)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(ptr), memory.size), nil
}

func (m *MemoryProperties) Unmap(memory Memory) {
	m.driver.UnmapMemory(memory.handle)
}

// Upload maps the allocation, copies data into the start of it, zeroes whatever data didn't cover, and
// unmaps it again
func (m *MemoryProperties) Upload(memory Memory, data []byte) error {
	mapped, err := m.Map(memory)
	if err != nil {
		return err
	}
	defer m.Unmap(memory)

	written := copy(mapped, data)
	clear(mapped[written:])
	return nil
}

func (m *MemoryProperties) AllocationCount() uint32 {
	return atomic.LoadUint32(&m.memoryCount)
}

// HeapStatistics returns one entry per memory heap describing the live allocations made from it
func (m *MemoryProperties) HeapStatistics() []Statistics {
	stats := make([]Statistics, len(m.blockCount))
	for heapIndex := range stats {
		stats[heapIndex].BlockCount = int(atomic.LoadInt32(&m.blockCount[heapIndex]))
		stats[heapIndex].BlockBytes = int(atomic.LoadInt64(&m.blockBytes[heapIndex]))
	}

	return stats
}
