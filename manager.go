package inflight

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/loader"
	"github.com/vkngwrapper/inflight/internal/utils"
	"github.com/vkngwrapper/inflight/internal/vulkan"
	"github.com/vkngwrapper/inflight/release"
)

// CreateOptions contains the settings for a Manager that can't be loaded from a config file. It is valid
// to leave all the fields blank.
type CreateOptions struct {
	// Flags indicates specific manager behaviors to activate or deactivate
	Flags CreateFlags

	// VulkanCallbacks is an optional set of callbacks that will be passed to every Vulkan create,
	// allocate, destroy, and free call the manager makes for device memory, and to every destroy call
	// the release queue makes
	VulkanCallbacks *loader.AllocationCallbacks

	// MemoryCallbackOptions is an optional set of callbacks that will be executed whenever the manager
	// allocates or frees device memory
	MemoryCallbackOptions *MemoryCallbackOptions
}

// Manager owns everything the buffered resources it creates share: the device memory accounting, the
// transfer command buffer used for uploads, the release queue, and the current buffering index.
type Manager struct {
	logger    *slog.Logger
	driver    core1_0.CoreDeviceDriver
	callbacks *loader.AllocationCallbacks
	config    Config

	useMutex bool
	// Guards bufferingIndex and the transfer channel
	mutex          utils.OptionalRWMutex
	bufferingIndex int

	memory       *vulkan.MemoryProperties
	transfer     *vulkan.TransferChannel
	releaseQueue *release.Queue
}

// New creates a new Manager
//
// driver - The CoreDeviceDriver for the device that resources will be created on
//
// physicalDevice - The PhysicalDevice that owns the driver's Device
//
// queue - A queue that supports transfer and graphics operations, used to submit uploads
//
// commandPool - A command pool for queue's family, created with CommandPoolCreateResetBuffer
//
// config - Validated settings, usually from DefaultConfig or LoadConfig
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(
	logger *slog.Logger,
	driver core1_0.CoreDeviceDriver,
	physicalDevice core1_0.PhysicalDevice,
	queue core1_0.Queue,
	commandPool core1_0.CommandPool,
	config Config,
	options CreateOptions,
) (*Manager, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	useMutex := options.Flags&CreateExternallySynchronized == 0 && !config.ExternallySynchronized

	manager := &Manager{
		logger:    logger,
		driver:    driver,
		callbacks: options.VulkanCallbacks,
		config:    config,
		useMutex:  useMutex,
		mutex: utils.OptionalRWMutex{
			UseMutex: useMutex,
		},
	}

	manager.memory, err = vulkan.NewMemoryProperties(driver, physicalDevice, vulkan.MemoryOptions{
		AllocationCallbacks: options.VulkanCallbacks,
		MemoryCallbacks: &memoryCallbacks{
			Callbacks: options.MemoryCallbackOptions,
			Manager:   manager,
		},
		HeapSizeLimits: config.HeapSizeLimits,
	})
	if err != nil {
		return nil, err
	}

	manager.releaseQueue, err = release.New(logger, driver, config.BufferingCount, release.CreateOptions{
		AllocationCallbacks:    options.VulkanCallbacks,
		ExternallySynchronized: !useMutex,
	})
	if err != nil {
		return nil, err
	}

	manager.transfer, err = vulkan.NewTransferChannel(logger, driver, queue, commandPool)
	if err != nil {
		return nil, err
	}

	return manager, nil
}

// Destroy frees every resource still waiting in the release queue and the transfer command buffer. The
// device must be idle, and buffered resources should have been destroyed first.
func (m *Manager) Destroy() error {
	m.logger.Debug("Manager::Destroy")

	err := m.releaseQueue.ReleaseAllResources(0)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.transfer.Destroy()
	return err
}

func (m *Manager) Driver() core1_0.CoreDeviceDriver {
	return m.driver
}

// ReleaseQueue is the queue buffered resources are destroyed through. Callers may release their own device
// objects into it as well.
func (m *Manager) ReleaseQueue() *release.Queue {
	return m.releaseQueue
}

// BufferingCount is the number of frames in flight
func (m *Manager) BufferingCount() int {
	return m.releaseQueue.BufferingCount()
}

// BufferingIndex is the slot of the frame currently being recorded
func (m *Manager) BufferingIndex() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.bufferingIndex
}

// SetBufferingIndex records which slot the frame now being recorded uses. Resources destroyed from here on
// are queued against that slot. Any frame index may be passed, it is folded into the ring.
func (m *Manager) SetBufferingIndex(bufferingIndex int) {
	count := m.BufferingCount()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.bufferingIndex = release.WrapIndex(bufferingIndex, count)
}

// ReleaseFrameResources destroys the resources that were waiting on buffering slot bufferingIndex. Call it
// once that slot's completion fence has signalled. FrameSync.Begin does this automatically.
func (m *Manager) ReleaseFrameResources(bufferingIndex int) error {
	return m.releaseQueue.ReleaseFrameResources(bufferingIndex)
}

// ReleaseAllResources destroys every pending resource. The device must be idle. When newBufferingCount is
// greater than zero, the ring is resized and the buffering index returns to 0. Existing buffered resources
// keep their own copy counts, and handle lookups on them continue to wrap by that count.
func (m *Manager) ReleaseAllResources(newBufferingCount int) error {
	if newBufferingCount > MaxBufferingCount {
		return errors.Wrapf(ErrInvalidConfig, "buffering count must be at most %d, received %d", MaxBufferingCount, newBufferingCount)
	}

	err := m.releaseQueue.ReleaseAllResources(newBufferingCount)

	if newBufferingCount > 0 {
		m.mutex.Lock()
		m.config.BufferingCount = newBufferingCount
		m.bufferingIndex = 0
		m.mutex.Unlock()
	}

	return err
}

// HeapStatistics returns one entry per memory heap describing the device memory held by this manager
func (m *Manager) HeapStatistics() []vulkan.Statistics {
	return m.memory.HeapStatistics()
}

// AllocationCount is the number of device memory blocks currently held by this manager
func (m *Manager) AllocationCount() int {
	return int(m.memory.AllocationCount())
}

// BuildStatsString returns a JSON document describing the manager's memory use and release queue
func (m *Manager) BuildStatsString() string {
	writer := jwriter.NewWriter()

	obj := writer.Object()
	obj.Name("BufferingCount").Int(m.BufferingCount())
	obj.Name("BufferingIndex").Int(m.BufferingIndex())
	obj.Name("AllocationCount").Int(m.AllocationCount())

	var total vulkan.Statistics
	heaps := obj.Name("Heaps").Array()
	for heapIndex, stats := range m.memory.HeapStatistics() {
		total.AddStatistics(&stats)

		heapObj := heaps.Object()
		heapObj.Name("Heap").Int(heapIndex)
		heapObj.Name("BlockCount").Int(stats.BlockCount)
		heapObj.Name("BlockBytes").Int(stats.BlockBytes)
		heapObj.End()
	}
	heaps.End()

	totalObj := obj.Name("Total").Object()
	totalObj.Name("BlockCount").Int(total.BlockCount)
	totalObj.Name("BlockBytes").Int(total.BlockBytes)
	totalObj.End()

	obj.Name("ReleaseQueue")
	m.releaseQueue.BuildStatsString(&writer)
	obj.End()

	return string(writer.Bytes())
}

// submitTransfer records a batch on the transfer channel and submits it. When signalFence is nil the call
// blocks until the queue is idle. A recording failure aborts the batch without submitting anything.
func (m *Manager) submitTransfer(signalFence *core1_0.Fence, record func(commandBuffer core1_0.CommandBuffer) error) error {
	return m.mutex.Locked(func() error {
		err := m.transfer.Begin()
		if err != nil {
			return err
		}

		err = record(m.transfer.CommandBuffer())
		if err != nil {
			m.transfer.Abort()
			return err
		}

		return m.transfer.End(signalFence == nil, signalFence)
	})
}
