package inflight

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/inflight/internal/vulkan"
	"github.com/vkngwrapper/inflight/release"
)

const hostVisibleMemory = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent

type bufferCopy struct {
	buffer core1_0.Buffer
	memory vulkan.Memory
}

func (m *Manager) createBufferCopy(
	size int,
	usage core1_0.BufferUsageFlags,
	memoryFlags core1_0.MemoryPropertyFlags,
	priority float32,
) (bufferCopy, error) {
	var result bufferCopy
	var err error

	result.buffer, _, err = m.driver.CreateBuffer(m.callbacks, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return bufferCopy{}, errors.Wrap(err, "failed to create buffer")
	}

	requirements := m.driver.GetBufferMemoryRequirements(result.buffer)
	result.memory, _, err = m.memory.Allocate(requirements, memoryFlags, priority)
	if err != nil {
		m.driver.DestroyBuffer(result.buffer, m.callbacks)
		return bufferCopy{}, errors.Wrap(err, "failed to allocate buffer memory")
	}

	_, err = m.driver.BindBufferMemory(result.buffer, result.memory.Handle(), 0)
	if err != nil {
		m.destroyBufferCopy(result)
		return bufferCopy{}, errors.Wrap(err, "failed to bind buffer memory")
	}

	return result, nil
}

// destroyBufferCopy destroys a buffer immediately. Only use this for buffers the device has never been
// handed, or when the transfer queue has just gone idle.
func (m *Manager) destroyBufferCopy(physical bufferCopy) {
	if physical.buffer.Initialized() {
		m.driver.DestroyBuffer(physical.buffer, m.callbacks)
	}
	m.memory.Free(physical.memory)
}

func (m *Manager) releaseMemory(memory vulkan.Memory, bufferingIndex int) error {
	return m.releaseQueue.Release(release.ManagedMemory{
		Memory:     memory.Handle(),
		MemoryType: memory.MemoryType(),
		Size:       memory.Size(),
		Allocator:  m.memory,
	}, bufferingIndex)
}

func (m *Manager) releaseBufferCopy(physical bufferCopy, bufferingIndex int) error {
	err := m.releaseQueue.Release(release.Buffer{Buffer: physical.buffer}, bufferingIndex)
	return errors.CombineErrors(err, m.releaseMemory(physical.memory, bufferingIndex))
}

// allocationFailed joins ErrAllocationFailed with err so that errors.Is matches both the sentinel and
// the underlying cause
func allocationFailed(err error, format string, args ...interface{}) error {
	return errors.Join(ErrAllocationFailed, errors.Wrapf(err, format, args...))
}

func invalidCreateInfo(format string, args ...interface{}) error {
	return errors.Wrapf(ErrAllocationFailed, format, args...)
}
