package inflight

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/mocks"
	"github.com/vkngwrapper/core/v3/mocks/mocks1_2"
	"go.uber.org/mock/gomock"
)

const (
	deviceLocalType        = 0
	hostVisibleType        = 1
	allMemoryTypes  uint32 = 0b11
)

var testMemoryTypes = []core1_0.MemoryType{
	{
		PropertyFlags: core1_0.MemoryPropertyDeviceLocal,
		HeapIndex:     0,
	},
	{
		PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
		HeapIndex:     1,
	},
}

var testMemoryHeaps = []core1_0.MemoryHeap{
	{
		Size:  1000000,
		Flags: core1_0.MemoryHeapDeviceLocal,
	},
	{
		Size:  1000000,
		Flags: 0,
	},
}

type harness struct {
	t       *testing.T
	driver  *mocks1_2.MockCoreDeviceDriver
	device  core1_0.Device
	manager *Manager
	logs    *bytes.Buffer
}

func readyManager(t *testing.T, ctrl *gomock.Controller, config Config, options CreateOptions) *harness {
	mockInstance := mocks1_2.NewMockCoreInstanceDriver(ctrl)
	driver := mocks1_2.NewMockCoreDeviceDriver(ctrl)
	driver.EXPECT().InstanceDriver().Return(mockInstance).AnyTimes()

	instance := mocks.NewDummyInstance(common.Vulkan1_2, []string{})
	physicalDevice := mocks.NewDummyPhysicalDevice(instance, common.Vulkan1_2)
	device := mocks.NewDummyDevice(common.Vulkan1_2, []string{})
	driver.EXPECT().Device().Return(device).AnyTimes()

	mockInstance.EXPECT().GetPhysicalDeviceProperties(physicalDevice).Return(&core1_0.PhysicalDeviceProperties{
		DriverType: core1_0.PhysicalDeviceTypeDiscreteGPU,
		Limits: &core1_0.PhysicalDeviceLimits{
			MaxMemoryAllocationCount: 4096,
			NonCoherentAtomSize:      1,
			BufferImageGranularity:   1,
		},
	}, nil).AnyTimes()
	mockInstance.EXPECT().GetPhysicalDeviceMemoryProperties(physicalDevice).Return(&core1_0.PhysicalDeviceMemoryProperties{
		MemoryTypes: testMemoryTypes,
		MemoryHeaps: testMemoryHeaps,
	}).AnyTimes()

	driver.EXPECT().AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        core1_0.CommandPool{},
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}).Return([]core1_0.CommandBuffer{{}}, core1_0.VKSuccess, nil)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	manager, err := New(logger, driver, physicalDevice, core1_0.Queue{}, core1_0.CommandPool{}, config, options)
	require.NoError(t, err)

	return &harness{
		t:       t,
		driver:  driver,
		device:  device,
		manager: manager,
		logs:    logs,
	}
}

// expectBufferCopy expects a single buffer to be created, backed by memory from memoryType, and bound
func (h *harness) expectBufferCopy(size int, usage core1_0.BufferUsageFlags, memoryType int) (core1_0.Buffer, core1_0.DeviceMemory) {
	buffer := mocks.NewDummyBuffer(h.device)
	memory := mocks.NewDummyDeviceMemory(h.device, size)

	h.driver.EXPECT().CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	}).Return(buffer, core1_0.VKSuccess, nil)
	h.driver.EXPECT().GetBufferMemoryRequirements(buffer).Return(&core1_0.MemoryRequirements{
		Size:           size,
		Alignment:      1,
		MemoryTypeBits: allMemoryTypes,
	})
	h.driver.EXPECT().AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryType,
	}).Return(memory, core1_0.VKSuccess, nil)
	h.driver.EXPECT().BindBufferMemory(buffer, memory, 0).Return(core1_0.VKSuccess, nil)

	return buffer, memory
}

// expectMap expects memory to be mapped once and returns the bytes the mapping will point at
func (h *harness) expectMap(memory core1_0.DeviceMemory, size int) []byte {
	backing := make([]byte, size)
	h.driver.EXPECT().MapMemory(memory, 0, size, gomock.Any()).Return(unsafe.Pointer(&backing[0]), core1_0.VKSuccess, nil)
	return backing
}

// expectUpload expects memory to be mapped, written, and unmapped, and returns the bytes written
func (h *harness) expectUpload(memory core1_0.DeviceMemory, size int) []byte {
	backing := h.expectMap(memory, size)
	h.driver.EXPECT().UnmapMemory(memory)
	return backing
}

func (h *harness) expectTransfer(signalFence *core1_0.Fence) {
	h.driver.EXPECT().ResetCommandBuffer(core1_0.CommandBuffer{}, gomock.Any()).Return(core1_0.VKSuccess, nil)
	h.driver.EXPECT().BeginCommandBuffer(core1_0.CommandBuffer{}, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	}).Return(core1_0.VKSuccess, nil)
	h.driver.EXPECT().EndCommandBuffer(core1_0.CommandBuffer{}).Return(core1_0.VKSuccess, nil)

	if signalFence == nil {
		h.driver.EXPECT().QueueSubmit(core1_0.Queue{}, nil, core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{{}},
		}).Return(core1_0.VKSuccess, nil)
		h.driver.EXPECT().QueueWaitIdle(core1_0.Queue{}).Return(core1_0.VKSuccess, nil)
	} else {
		h.driver.EXPECT().QueueSubmit(core1_0.Queue{}, signalFence, core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{{}},
		}).Return(core1_0.VKSuccess, nil)
	}
}

func (h *harness) expectDestroyBuffer(buffer core1_0.Buffer, memory core1_0.DeviceMemory) {
	h.driver.EXPECT().DestroyBuffer(buffer, nil)
	h.driver.EXPECT().FreeMemory(memory, nil)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := mocks1_2.NewMockCoreDeviceDriver(ctrl)

	config := DefaultConfig()
	config.BufferingCount = 0

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	_, err := New(logger, driver, core1_0.PhysicalDevice{}, core1_0.Queue{}, core1_0.CommandPool{}, config, CreateOptions{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSetBufferingIndexWraps(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := readyManager(t, ctrl, DefaultConfig(), CreateOptions{})

	require.Equal(t, 2, h.manager.BufferingCount())
	require.Equal(t, 0, h.manager.BufferingIndex())

	h.manager.SetBufferingIndex(5)
	require.Equal(t, 1, h.manager.BufferingIndex())

	h.manager.SetBufferingIndex(-2)
	require.Equal(t, 0, h.manager.BufferingIndex())
}

func TestReleaseAllResourcesResizesRing(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := readyManager(t, ctrl, DefaultConfig(), CreateOptions{})

	h.manager.SetBufferingIndex(1)
	require.NoError(t, h.manager.ReleaseAllResources(3))
	require.Equal(t, 3, h.manager.BufferingCount())
	require.Equal(t, 0, h.manager.BufferingIndex())

	require.ErrorIs(t, h.manager.ReleaseAllResources(MaxBufferingCount+1), ErrInvalidConfig)
	require.Equal(t, 3, h.manager.BufferingCount())
}

func TestMemoryCallbacks(t *testing.T) {
	ctrl := gomock.NewController(t)

	var allocated, freed []int
	var callbackManager *Manager
	h := readyManager(t, ctrl, DefaultConfig(), CreateOptions{
		MemoryCallbackOptions: &MemoryCallbackOptions{
			Allocate: func(manager *Manager, memoryType int, memory core1_0.DeviceMemory, size int, userData interface{}) {
				callbackManager = manager
				allocated = append(allocated, size)
				require.Equal(t, "userdata", userData)
			},
			Free: func(manager *Manager, memoryType int, memory core1_0.DeviceMemory, size int, userData interface{}) {
				freed = append(freed, size)
			},
			UserData: "userdata",
		},
	})

	first, firstMemory := h.expectBufferCopy(64, core1_0.BufferUsageVertexBuffer, deviceLocalType)
	second, secondMemory := h.expectBufferCopy(64, core1_0.BufferUsageVertexBuffer, deviceLocalType)

	buffer, err := h.manager.CreateBuffer(BufferCreateInfo{
		Size:    64,
		Usage:   core1_0.BufferUsageVertexBuffer,
		Storage: StorageDeviceLocal,
	})
	require.NoError(t, err)
	require.Equal(t, []int{64, 64}, allocated)
	require.Same(t, h.manager, callbackManager)

	require.NoError(t, buffer.Destroy())
	h.expectDestroyBuffer(first, firstMemory)
	h.expectDestroyBuffer(second, secondMemory)
	require.NoError(t, h.manager.ReleaseFrameResources(0))
	require.Equal(t, []int{64, 64}, freed)
}

func TestManagerBuildStatsString(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := readyManager(t, ctrl, DefaultConfig(), CreateOptions{})

	h.expectBufferCopy(128, core1_0.BufferUsageUniformBuffer, deviceLocalType)
	h.expectBufferCopy(128, core1_0.BufferUsageUniformBuffer, deviceLocalType)

	buffer, err := h.manager.CreateBuffer(BufferCreateInfo{
		Size:  128,
		Usage: core1_0.BufferUsageUniformBuffer,
	})
	require.NoError(t, err)
	require.NoError(t, buffer.Destroy())

	var stats struct {
		BufferingCount  int
		BufferingIndex  int
		AllocationCount int
		Heaps           []struct {
			Heap       int
			BlockCount int
			BlockBytes int
		}
		Total struct {
			BlockCount int
			BlockBytes int
		}
		ReleaseQueue struct {
			Pending  int
			Released int
		}
	}
	require.NoError(t, json.Unmarshal([]byte(h.manager.BuildStatsString()), &stats))

	require.Equal(t, 2, stats.BufferingCount)
	require.Equal(t, 2, stats.AllocationCount)
	require.Len(t, stats.Heaps, 2)
	require.Equal(t, 2, stats.Heaps[0].BlockCount)
	require.Equal(t, 256, stats.Heaps[0].BlockBytes)
	require.Equal(t, 2, stats.Total.BlockCount)
	require.Equal(t, 256, stats.Total.BlockBytes)
	require.Equal(t, 4, stats.ReleaseQueue.Pending)
	require.Equal(t, 4, stats.ReleaseQueue.Released)
}

func TestManagerDestroyDrainsQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := readyManager(t, ctrl, DefaultConfig(), CreateOptions{})

	buffer, memory := h.expectBufferCopy(32, core1_0.BufferUsageStorageBuffer, deviceLocalType)

	created, err := h.manager.CreateBuffer(BufferCreateInfo{
		Count: 1,
		Size:  32,
		Usage: core1_0.BufferUsageStorageBuffer,
	})
	require.NoError(t, err)

	// Slot 1 was processed last, so the buffer lands in the later generation
	require.NoError(t, h.manager.ReleaseFrameResources(1))
	require.NoError(t, created.Destroy())

	h.expectDestroyBuffer(buffer, memory)
	h.driver.EXPECT().FreeCommandBuffers(core1_0.CommandBuffer{})
	require.NoError(t, h.manager.Destroy())
	require.Equal(t, 0, h.manager.ReleaseQueue().PendingCount())
	require.Equal(t, 0, h.manager.AllocationCount())
}

func TestFlagStrings(t *testing.T) {
	require.Contains(t, (MapRead | MapWrite).String(), "MapRead")
	require.Contains(t, (MapRead | MapWrite).String(), "MapWrite")
	require.Contains(t, CreateExternallySynchronized.String(), "CreateExternallySynchronized")
	require.Equal(t, "StorageDeviceLocalHostCopy", StorageDeviceLocalHostCopy.String())
}
