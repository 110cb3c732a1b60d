package inflight

import "github.com/vkngwrapper/core/v3/core1_0"

type AllocateDeviceMemoryCallback func(
	manager *Manager,
	memoryType int,
	memory core1_0.DeviceMemory,
	size int,
	userData interface{},
)

type FreeDeviceMemoryCallback func(
	manager *Manager,
	memoryType int,
	memory core1_0.DeviceMemory,
	size int,
	userData interface{},
)

// MemoryCallbackOptions are called whenever the manager allocates or frees a block of device memory
type MemoryCallbackOptions struct {
	Allocate AllocateDeviceMemoryCallback
	Free     FreeDeviceMemoryCallback
	UserData interface{}
}

type memoryCallbacks struct {
	Callbacks *MemoryCallbackOptions
	Manager   *Manager
}

func (c *memoryCallbacks) Allocate(
	memoryType int,
	memory core1_0.DeviceMemory,
	size int,
) {
	if c.Callbacks != nil && c.Callbacks.Allocate != nil {
		c.Callbacks.Allocate(c.Manager, memoryType, memory, size, c.Callbacks.UserData)
	}
}

func (c *memoryCallbacks) Free(
	memoryType int,
	memory core1_0.DeviceMemory,
	size int,
) {
	if c.Callbacks != nil && c.Callbacks.Free != nil {
		c.Callbacks.Free(c.Manager, memoryType, memory, size, c.Callbacks.UserData)
	}
}
