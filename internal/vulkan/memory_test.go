package vulkan

import (
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/mocks"
	"github.com/vkngwrapper/core/v3/mocks/mocks1_2"
	"github.com/vkngwrapper/extensions/v3/ext_memory_priority"
	"go.uber.org/mock/gomock"
)

type MemorySetup struct {
	DeviceExtensions []string
	MemoryTypes      []core1_0.MemoryType
	MemoryHeaps      []core1_0.MemoryHeap
	MaxAllocations   int
	Options          MemoryOptions
}

var defaultMemoryTypes = []core1_0.MemoryType{
	{
		PropertyFlags: 0,
		HeapIndex:     1,
	},
	{
		PropertyFlags: core1_0.MemoryPropertyDeviceLocal,
		HeapIndex:     0,
	},
	{
		PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
		HeapIndex:     1,
	},
	{
		PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent | core1_0.MemoryPropertyHostCached,
		HeapIndex:     1,
	},
	{
		PropertyFlags: core1_0.MemoryPropertyDeviceLocal | core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
		HeapIndex:     0,
	},
}

var defaultMemoryHeaps = []core1_0.MemoryHeap{
	{
		Size:  1000000,
		Flags: core1_0.MemoryHeapDeviceLocal,
	},
	{
		Size:  1000000,
		Flags: 0,
	},
}

func readyMemory(t *testing.T, ctrl *gomock.Controller, setup MemorySetup) (*mocks1_2.MockCoreDeviceDriver, *MemoryProperties) {
	mockInstance := mocks1_2.NewMockCoreInstanceDriver(ctrl)
	mockCore := mocks1_2.NewMockCoreDeviceDriver(ctrl)
	mockCore.EXPECT().InstanceDriver().Return(mockInstance).AnyTimes()

	instance := mocks.NewDummyInstance(common.Vulkan1_2, []string{})
	physicalDevice := mocks.NewDummyPhysicalDevice(instance, common.Vulkan1_2)
	device := mocks.NewDummyDevice(common.Vulkan1_2, setup.DeviceExtensions)
	mockCore.EXPECT().Device().Return(device).AnyTimes()

	if setup.MemoryTypes == nil {
		setup.MemoryTypes = defaultMemoryTypes
	}
	if setup.MemoryHeaps == nil {
		setup.MemoryHeaps = defaultMemoryHeaps
	}
	if setup.MaxAllocations == 0 {
		setup.MaxAllocations = 4096
	}

	mockInstance.EXPECT().GetPhysicalDeviceProperties(physicalDevice).Return(&core1_0.PhysicalDeviceProperties{
		DriverType: core1_0.PhysicalDeviceTypeDiscreteGPU,
		Limits: &core1_0.PhysicalDeviceLimits{
			MaxMemoryAllocationCount: setup.MaxAllocations,
			NonCoherentAtomSize:      1,
			BufferImageGranularity:   1,
		},
	}, nil).AnyTimes()
	mockInstance.EXPECT().GetPhysicalDeviceMemoryProperties(physicalDevice).Return(&core1_0.PhysicalDeviceMemoryProperties{
		MemoryTypes: setup.MemoryTypes,
		MemoryHeaps: setup.MemoryHeaps,
	}).AnyTimes()

	properties, err := NewMemoryProperties(mockCore, physicalDevice, setup.Options)
	require.NoError(t, err)

	return mockCore, properties
}

var selectMemoryTypeTestCases = map[string]struct {
	TypeBits      uint32
	RequiredFlags core1_0.MemoryPropertyFlags

	ExpectedIndex int
	ExpectedError error
}{
	"DeviceLocal": {
		TypeBits:      0xffffffff,
		RequiredFlags: core1_0.MemoryPropertyDeviceLocal,
		ExpectedIndex: 1,
	},
	"HostVisibleCoherent": {
		TypeBits:      0xffffffff,
		RequiredFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
		ExpectedIndex: 2,
	},
	"HostVisibleMaskedOut": {
		TypeBits:      0b11011,
		RequiredFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
		ExpectedIndex: 3,
	},
	"HostCached": {
		TypeBits:      0xffffffff,
		RequiredFlags: core1_0.MemoryPropertyHostCached,
		ExpectedIndex: 3,
	},
	"DeviceLocalHostVisible": {
		TypeBits:      0xffffffff,
		RequiredFlags: core1_0.MemoryPropertyDeviceLocal | core1_0.MemoryPropertyHostVisible,
		ExpectedIndex: 4,
	},
	"NoFlagsFirstBit": {
		TypeBits:      0b10000,
		RequiredFlags: 0,
		ExpectedIndex: 4,
	},
	"EmptyMask": {
		TypeBits:      0,
		RequiredFlags: 0,
		ExpectedIndex: -1,
		ExpectedError: ErrNoCompatibleMemoryType,
	},
	"NoMatchingFlags": {
		TypeBits:      0b00011,
		RequiredFlags: core1_0.MemoryPropertyHostVisible,
		ExpectedIndex: -1,
		ExpectedError: ErrNoCompatibleMemoryType,
	},
}

func TestSelectMemoryType(t *testing.T) {
	for testName, testCase := range selectMemoryTypeTestCases {
		t.Run(testName, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			_, properties := readyMemory(t, ctrl, MemorySetup{})

			index, err := properties.SelectMemoryType(testCase.TypeBits, testCase.RequiredFlags)
			if testCase.ExpectedError != nil {
				require.ErrorIs(t, err, testCase.ExpectedError)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, testCase.ExpectedIndex, index)
		})
	}
}

type recordingCallbacks struct {
	allocated []int
	freed     []int
}

func (c *recordingCallbacks) Allocate(memoryType int, memory core1_0.DeviceMemory, size int) {
	c.allocated = append(c.allocated, size)
}

func (c *recordingCallbacks) Free(memoryType int, memory core1_0.DeviceMemory, size int) {
	c.freed = append(c.freed, size)
}

func TestAllocateAndFree(t *testing.T) {
	ctrl := gomock.NewController(t)
	callbacks := &recordingCallbacks{}

	driver, properties := readyMemory(t, ctrl, MemorySetup{
		Options: MemoryOptions{MemoryCallbacks: callbacks},
	})

	memory := mocks.NewDummyDeviceMemory(driver.Device(), 1000)
	driver.EXPECT().AllocateMemory(gomock.Any(), core1_0.MemoryAllocateInfo{
		AllocationSize:  1000,
		MemoryTypeIndex: 2,
	}).Return(memory, core1_0.VKSuccess, nil)

	mem, _, err := properties.Allocate(&core1_0.MemoryRequirements{
		Size:           1000,
		Alignment:      1,
		MemoryTypeBits: 0xffffffff,
	}, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent, 0.5)
	require.NoError(t, err)
	require.Equal(t, memory, mem.Handle())
	require.Equal(t, 2, mem.MemoryType())
	require.Equal(t, 1000, mem.Size())
	require.True(t, mem.HostVisible())

	require.Equal(t, []int{1000}, callbacks.allocated)
	require.Equal(t, uint32(1), properties.AllocationCount())
	stats := properties.HeapStatistics()
	require.Equal(t, Statistics{BlockCount: 0, BlockBytes: 0}, stats[0])
	require.Equal(t, Statistics{BlockCount: 1, BlockBytes: 1000}, stats[1])

	driver.EXPECT().FreeMemory(memory, nil)
	properties.Free(mem)

	require.Equal(t, []int{1000}, callbacks.freed)
	require.Equal(t, uint32(0), properties.AllocationCount())
	require.Equal(t, Statistics{}, properties.HeapStatistics()[1])
}

func TestAllocateWithPriority(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, properties := readyMemory(t, ctrl, MemorySetup{
		DeviceExtensions: []string{ext_memory_priority.ExtensionName},
	})

	memory := mocks.NewDummyDeviceMemory(driver.Device(), 256)
	driver.EXPECT().AllocateMemory(gomock.Any(), core1_0.MemoryAllocateInfo{
		AllocationSize:  256,
		MemoryTypeIndex: 1,
		NextOptions: common.NextOptions{
			Next: ext_memory_priority.MemoryPriorityAllocateInfo{
				Priority: 1,
			},
		},
	}).Return(memory, core1_0.VKSuccess, nil)

	mem, _, err := properties.Allocate(&core1_0.MemoryRequirements{
		Size:           256,
		Alignment:      1,
		MemoryTypeBits: 0xffffffff,
	}, core1_0.MemoryPropertyDeviceLocal, 1)
	require.NoError(t, err)
	require.False(t, mem.HostVisible())
}

func TestAllocateFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, properties := readyMemory(t, ctrl, MemorySetup{})

	driver.EXPECT().AllocateMemory(gomock.Any(), gomock.Any()).
		Return(core1_0.DeviceMemory{}, core1_0.VKErrorOutOfDeviceMemory, core1_0.VKErrorOutOfDeviceMemory.ToError())

	_, res, err := properties.Allocate(&core1_0.MemoryRequirements{
		Size:           1000,
		Alignment:      1,
		MemoryTypeBits: 0xffffffff,
	}, core1_0.MemoryPropertyDeviceLocal, 0.5)
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorOutOfDeviceMemory, res)
	require.Equal(t, uint32(0), properties.AllocationCount())
	require.Equal(t, Statistics{}, properties.HeapStatistics()[0])
}

func TestAllocateNoCompatibleType(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, properties := readyMemory(t, ctrl, MemorySetup{})

	_, _, err := properties.Allocate(&core1_0.MemoryRequirements{
		Size:           1000,
		Alignment:      1,
		MemoryTypeBits: 0b1,
	}, core1_0.MemoryPropertyDeviceLocal, 0.5)
	require.True(t, errors.Is(err, ErrNoCompatibleMemoryType))
	require.Equal(t, uint32(0), properties.AllocationCount())
}

func TestAllocateTooManyObjects(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, properties := readyMemory(t, ctrl, MemorySetup{MaxAllocations: 1})

	memory := mocks.NewDummyDeviceMemory(driver.Device(), 100)
	driver.EXPECT().AllocateMemory(gomock.Any(), gomock.Any()).Return(memory, core1_0.VKSuccess, nil)

	requirements := &core1_0.MemoryRequirements{
		Size:           100,
		Alignment:      1,
		MemoryTypeBits: 0xffffffff,
	}
	_, _, err := properties.Allocate(requirements, core1_0.MemoryPropertyDeviceLocal, 0.5)
	require.NoError(t, err)

	_, res, err := properties.Allocate(requirements, core1_0.MemoryPropertyDeviceLocal, 0.5)
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorTooManyObjects, res)
	require.Equal(t, uint32(1), properties.AllocationCount())
}

func TestAllocateHeapLimit(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, properties := readyMemory(t, ctrl, MemorySetup{
		Options: MemoryOptions{HeapSizeLimits: []int{1500, 0}},
	})

	memory := mocks.NewDummyDeviceMemory(driver.Device(), 1000)
	driver.EXPECT().AllocateMemory(gomock.Any(), gomock.Any()).Return(memory, core1_0.VKSuccess, nil)

	requirements := &core1_0.MemoryRequirements{
		Size:           1000,
		Alignment:      1,
		MemoryTypeBits: 0xffffffff,
	}
	_, _, err := properties.Allocate(requirements, core1_0.MemoryPropertyDeviceLocal, 0.5)
	require.NoError(t, err)

	_, res, err := properties.Allocate(requirements, core1_0.MemoryPropertyDeviceLocal, 0.5)
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorOutOfDeviceMemory, res)
	require.Equal(t, Statistics{BlockCount: 1, BlockBytes: 1000}, properties.HeapStatistics()[0])
}

func TestBadHeapLimits(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockInstance := mocks1_2.NewMockCoreInstanceDriver(ctrl)
	mockCore := mocks1_2.NewMockCoreDeviceDriver(ctrl)
	mockCore.EXPECT().InstanceDriver().Return(mockInstance).AnyTimes()

	instance := mocks.NewDummyInstance(common.Vulkan1_2, []string{})
	physicalDevice := mocks.NewDummyPhysicalDevice(instance, common.Vulkan1_2)
	mockCore.EXPECT().Device().Return(mocks.NewDummyDevice(common.Vulkan1_2, []string{})).AnyTimes()
	mockInstance.EXPECT().GetPhysicalDeviceProperties(physicalDevice).Return(&core1_0.PhysicalDeviceProperties{
		Limits: &core1_0.PhysicalDeviceLimits{MaxMemoryAllocationCount: 1},
	}, nil)
	mockInstance.EXPECT().GetPhysicalDeviceMemoryProperties(physicalDevice).Return(&core1_0.PhysicalDeviceMemoryProperties{
		MemoryTypes: defaultMemoryTypes,
		MemoryHeaps: defaultMemoryHeaps,
	})

	_, err := NewMemoryProperties(mockCore, physicalDevice, MemoryOptions{HeapSizeLimits: []int{1}})
	require.Error(t, err)
}

func TestMapAndUpload(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, properties := readyMemory(t, ctrl, MemorySetup{})

	memory := mocks.NewDummyDeviceMemory(driver.Device(), 8)
	driver.EXPECT().AllocateMemory(gomock.Any(), gomock.Any()).Return(memory, core1_0.VKSuccess, nil)

	mem, _, err := properties.Allocate(&core1_0.MemoryRequirements{
		Size:           8,
		Alignment:      1,
		MemoryTypeBits: 0xffffffff,
	}, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent, 0.5)
	require.NoError(t, err)

	backing := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	driver.EXPECT().MapMemory(memory, 0, 8, gomock.Any()).Return(unsafe.Pointer(&backing[0]), core1_0.VKSuccess, nil)
	driver.EXPECT().UnmapMemory(memory)

	err = properties.Upload(mem, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, backing)
}

func TestMapDeviceLocalFails(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, properties := readyMemory(t, ctrl, MemorySetup{})

	memory := mocks.NewDummyDeviceMemory(driver.Device(), 8)
	driver.EXPECT().AllocateMemory(gomock.Any(), gomock.Any()).Return(memory, core1_0.VKSuccess, nil)

	mem, _, err := properties.Allocate(&core1_0.MemoryRequirements{
		Size:           8,
		Alignment:      1,
		MemoryTypeBits: 0xffffffff,
	}, core1_0.MemoryPropertyDeviceLocal, 0.5)
	require.NoError(t, err)

	_, err = properties.Map(mem)
	require.Error(t, err)
}
