package inflight

import (
	"bytes"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/inflight/internal/utils"
	"github.com/vkngwrapper/inflight/release"
)

// BufferCreateInfo describes a buffered buffer
type BufferCreateInfo struct {
	// Count is the number of physical copies. Zero uses the manager's buffering count.
	Count int
	// Size is the size of each copy in bytes
	Size int
	Usage core1_0.BufferUsageFlags
	// Data is copied into every copy when the buffer is created. It may be shorter than Size, in which case
	// the remainder is zeroed, but it may not be longer.
	Data    []byte
	Storage StoragePolicy
}

// Buffer is a GPU buffer that exists once per frame in flight. Copy i is meant to be written while frame i
// is being recorded, so the CPU never touches memory a previous frame is still reading.
type Buffer struct {
	manager *Manager
	mutex   utils.OptionalRWMutex

	copies  []bufferCopy
	size    int
	usage   core1_0.BufferUsageFlags
	storage StoragePolicy
	shadow  []byte

	mapFlags MapFlags
	// Copy holding the active mapping, or -1 when the host copy is mapped
	mapCopy int
}

// CreateBuffer creates every physical copy of a buffer and uploads its initial data. On failure, the
// returned error matches ErrAllocationFailed and nothing that was created survives.
func (m *Manager) CreateBuffer(o BufferCreateInfo) (*Buffer, error) {
	m.logger.Debug("Manager::CreateBuffer", slog.Int("size", o.Size), slog.String("storage", o.Storage.String()))

	if o.Count == 0 {
		o.Count = m.BufferingCount()
	}
	if o.Count < 0 {
		return nil, invalidCreateInfo("count must be positive, received %d", o.Count)
	}
	if o.Size <= 0 {
		return nil, invalidCreateInfo("size must be positive, received %d", o.Size)
	}
	if len(o.Data) > o.Size {
		return nil, invalidCreateInfo("%d bytes of initial data do not fit in a buffer of size %d", len(o.Data), o.Size)
	}
	if o.Storage == StorageDeviceLocalHostCopy && o.Data == nil {
		return nil, ErrMissingInitialData
	}

	buffer := &Buffer{
		manager: m,
		mutex: utils.OptionalRWMutex{
			UseMutex: m.useMutex,
		},
		size:    o.Size,
		usage:   o.Usage,
		storage: o.Storage,
	}

	var err error
	if o.Storage == StorageHostVisible {
		err = buffer.createHostVisible(o.Count, o.Data)
	} else {
		err = buffer.createDeviceLocal(o.Count, o.Data)
	}
	if err != nil {
		for _, physical := range buffer.copies {
			m.destroyBufferCopy(physical)
		}
		return nil, err
	}

	if o.Storage == StorageDeviceLocalHostCopy {
		buffer.shadow = make([]byte, o.Size)
		copy(buffer.shadow, o.Data)
	}

	return buffer, nil
}

func (b *Buffer) createHostVisible(count int, data []byte) error {
	m := b.manager

	for i := 0; i < count; i++ {
		physical, err := m.createBufferCopy(b.size, b.usage, hostVisibleMemory, m.config.ResourcePriority)
		if err != nil {
			return allocationFailed(err, "copy %d", i)
		}
		b.copies = append(b.copies, physical)

		if data != nil {
			err = m.memory.Upload(physical.memory, data)
			if err != nil {
				return allocationFailed(err, "failed to write initial data to copy %d", i)
			}
		}
	}

	return nil
}

func (b *Buffer) createDeviceLocal(count int, data []byte) error {
	m := b.manager

	usage := b.usage
	if data != nil {
		usage |= core1_0.BufferUsageTransferDst
	}

	for i := 0; i < count; i++ {
		physical, err := m.createBufferCopy(b.size, usage, core1_0.MemoryPropertyDeviceLocal, m.config.ResourcePriority)
		if err != nil {
			return allocationFailed(err, "copy %d", i)
		}
		b.copies = append(b.copies, physical)
	}

	if data == nil {
		return nil
	}

	staging := make([]bufferCopy, 0, count)
	defer func() {
		// The transfer has either completed or never been submitted, so staging can go immediately
		for _, stagingCopy := range staging {
			m.destroyBufferCopy(stagingCopy)
		}
	}()

	for i := 0; i < count; i++ {
		stagingCopy, err := m.createBufferCopy(b.size, core1_0.BufferUsageTransferSrc, hostVisibleMemory, m.config.StagingPriority)
		if err != nil {
			return allocationFailed(err, "staging for copy %d", i)
		}
		staging = append(staging, stagingCopy)

		err = m.memory.Upload(stagingCopy.memory, data)
		if err != nil {
			return allocationFailed(err, "failed to write initial data to staging for copy %d", i)
		}
	}

	err := m.submitTransfer(nil, func(commandBuffer core1_0.CommandBuffer) error {
		for i, stagingCopy := range staging {
			err := m.driver.CmdCopyBuffer(commandBuffer, stagingCopy.buffer, b.copies[i].buffer, core1_0.BufferCopy{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      b.size,
			})
			if err != nil {
				return err
			}

			err = m.driver.CmdPipelineBarrier(commandBuffer,
				core1_0.PipelineStageTransfer, core1_0.PipelineStageVertexShader, 0, nil,
				[]core1_0.BufferMemoryBarrier{
					{
						SrcAccessMask:       core1_0.AccessTransferWrite,
						DstAccessMask:       core1_0.AccessShaderRead,
						SrcQueueFamilyIndex: -1,
						DstQueueFamilyIndex: -1,
						Buffer:              b.copies[i].buffer,
						Offset:              0,
						Size:                b.size,
					},
				}, nil)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return allocationFailed(err, "failed to upload initial data")
	}

	return nil
}

// Map returns the bytes of copy bufferIndex % Count(). Only one mapping may be active at a time, across
// all copies. Buffers holding a host copy of their initial data return a fresh copy of it for MapRead, and
// refuse MapWrite.
func (b *Buffer) Map(bufferIndex int, flags MapFlags) ([]byte, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.copies == nil {
		return nil, ErrNotCreated
	}
	if b.mapFlags != MapNone {
		return nil, ErrAlreadyMapped
	}
	if flags&(MapRead|MapWrite) == 0 {
		return nil, errors.Wrapf(ErrInvalidMapFlags, "received %s", flags)
	}

	if b.shadow != nil {
		if flags&MapWrite != 0 {
			return nil, errors.Wrap(ErrInvalidMapFlags, "host copies are read-only")
		}

		b.mapFlags = flags
		b.mapCopy = -1
		return bytes.Clone(b.shadow), nil
	}

	copyIndex := release.WrapIndex(bufferIndex, len(b.copies))
	memory := b.copies[copyIndex].memory
	if !memory.HostVisible() {
		return nil, ErrNotHostAccessible
	}

	data, err := b.manager.memory.Map(memory)
	if err != nil {
		return nil, err
	}

	b.mapFlags = flags
	b.mapCopy = copyIndex
	return data, nil
}

// Unmap ends the active mapping. It does nothing if the buffer isn't mapped.
func (b *Buffer) Unmap(bufferIndex int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.mapFlags == MapNone {
		return
	}

	if b.mapCopy >= 0 {
		if release.WrapIndex(bufferIndex, len(b.copies)) != b.mapCopy {
			b.manager.logger.Warn("Buffer::Unmap called for a copy that was not mapped",
				slog.Int("bufferIndex", bufferIndex), slog.Int("mappedCopy", b.mapCopy))
		}
		b.manager.memory.Unmap(b.copies[b.mapCopy].memory)
	}

	b.mapFlags = MapNone
	b.mapCopy = 0
}

// Handle returns copy bufferIndex % Count()
func (b *Buffer) Handle(bufferIndex int) core1_0.Buffer {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if b.copies == nil {
		return core1_0.Buffer{}
	}
	return b.copies[release.WrapIndex(bufferIndex, len(b.copies))].buffer
}

// Memory returns the device memory bound to copy bufferIndex % Count()
func (b *Buffer) Memory(bufferIndex int) core1_0.DeviceMemory {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if b.copies == nil {
		return core1_0.DeviceMemory{}
	}
	return b.copies[release.WrapIndex(bufferIndex, len(b.copies))].memory.Handle()
}

func (b *Buffer) Size() int {
	return b.size
}

func (b *Buffer) Usage() core1_0.BufferUsageFlags {
	return b.usage
}

func (b *Buffer) Storage() StoragePolicy {
	return b.storage
}

func (b *Buffer) Count() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return len(b.copies)
}

// Valid is true between creation and Destroy
func (b *Buffer) Valid() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.copies != nil
}

// Destroy hands every copy to the manager's release queue at the current buffering index. The buffer can't
// be used afterward. Calling Destroy more than once is harmless.
func (b *Buffer) Destroy() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.copies == nil {
		return nil
	}

	m := b.manager
	m.logger.Debug("Buffer::Destroy")

	if b.mapFlags != MapNone && b.mapCopy >= 0 {
		m.memory.Unmap(b.copies[b.mapCopy].memory)
	}

	bufferingIndex := m.BufferingIndex()

	var err error
	for _, physical := range b.copies {
		err = errors.CombineErrors(err, m.releaseBufferCopy(physical, bufferingIndex))
	}

	b.copies = nil
	b.shadow = nil
	b.mapFlags = MapNone
	b.mapCopy = 0

	return err
}
