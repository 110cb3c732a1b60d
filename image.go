package inflight

import (
	"bytes"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/inflight/formats"
	"github.com/vkngwrapper/inflight/internal/utils"
	"github.com/vkngwrapper/inflight/internal/vulkan"
	"github.com/vkngwrapper/inflight/release"
)

// ImageCreateInfo describes a buffered image. Zero values for Height, Depth, ArrayLayers, and MipLevels
// are treated as 1. ImageType is not defaulted: its zero value is ImageType1D, so 2D images must set it.
type ImageCreateInfo struct {
	// Count is the number of physical copies. Zero uses the manager's buffering count.
	Count int

	ImageType   core1_0.ImageType
	Width       int
	Height      int
	Depth       int
	ArrayLayers int
	MipLevels   int
	Format      core1_0.Format
	Usage       core1_0.ImageUsageFlags

	// Data is copied into mip level 0 of every layer of every copy when the image is created. Texels are
	// tightly packed, and any part of the image that Data doesn't cover is zeroed.
	Data    []byte
	Storage StoragePolicy
}

type imageCopy struct {
	image  core1_0.Image
	memory vulkan.Memory
	view   core1_0.ImageView
	layout core1_0.ImageLayout

	// Retained only for StorageHostVisible
	staging bufferCopy
}

// Image is an optimally tiled GPU image that exists once per frame in flight. Each copy tracks its own
// layout, which only moves through TransitionLayoutTo and uploads.
type Image struct {
	manager *Manager
	mutex   utils.OptionalRWMutex

	copies      []imageCopy
	imageType   core1_0.ImageType
	extent      core1_0.Extent3D
	arrayLayers int
	mipLevels   int
	format      core1_0.Format
	usage       core1_0.ImageUsageFlags
	aspect      core1_0.ImageAspectFlags
	// Layout copies settle into after every upload
	targetLayout core1_0.ImageLayout
	stagingSize  int
	storage      StoragePolicy
	shadow       []byte

	mapFlags MapFlags
	// Copy holding the active mapping, or -1 when the host copy is mapped
	mapCopy int
}

// targetLayoutForUsage picks the layout an image should rest in between frames based on how it will be used
func targetLayoutForUsage(usage core1_0.ImageUsageFlags) core1_0.ImageLayout {
	switch {
	case usage&core1_0.ImageUsageSampled != 0:
		return core1_0.ImageLayoutShaderReadOnlyOptimal
	case usage&core1_0.ImageUsageColorAttachment != 0:
		return core1_0.ImageLayoutColorAttachmentOptimal
	case usage&core1_0.ImageUsageDepthStencilAttachment != 0:
		return core1_0.ImageLayoutDepthStencilAttachmentOptimal
	}

	return core1_0.ImageLayoutGeneral
}

// CreateImage creates every physical copy of an image and uploads its initial data through a staging
// buffer. On failure, the returned error matches ErrAllocationFailed and nothing that was created
// survives.
func (m *Manager) CreateImage(o ImageCreateInfo) (*Image, error) {
	m.logger.Debug("Manager::CreateImage",
		slog.Int("width", o.Width), slog.Int("height", o.Height), slog.Any("format", o.Format),
		slog.String("storage", o.Storage.String()))

	if o.Count == 0 {
		o.Count = m.BufferingCount()
	}
	if o.Height == 0 {
		o.Height = 1
	}
	if o.Depth == 0 {
		o.Depth = 1
	}
	if o.ArrayLayers == 0 {
		o.ArrayLayers = 1
	}
	if o.MipLevels == 0 {
		o.MipLevels = 1
	}

	if o.Count < 0 || o.Width <= 0 || o.Height < 0 || o.Depth < 0 || o.ArrayLayers < 0 || o.MipLevels < 0 {
		return nil, invalidCreateInfo("invalid image dimensions: count %d, extent %dx%dx%d, %d layers, %d mips",
			o.Count, o.Width, o.Height, o.Depth, o.ArrayLayers, o.MipLevels)
	}

	switch {
	case o.ImageType == core1_0.ImageType1D && (o.Height > 1 || o.Depth > 1):
		return nil, invalidCreateInfo("1D images must have height and depth 1, received %dx%dx%d", o.Width, o.Height, o.Depth)
	case o.ImageType == core1_0.ImageType2D && o.Depth > 1:
		return nil, invalidCreateInfo("2D images must have depth 1, received %dx%dx%d", o.Width, o.Height, o.Depth)
	}

	bytesPerPixel := formats.BytesPerPixel(o.Format)
	if bytesPerPixel == 0 {
		return nil, errors.Join(ErrAllocationFailed, errors.Wrapf(ErrUnsupportedFormat, "format %v", o.Format))
	}

	stagingSize := o.Width * o.Height * o.Depth * o.ArrayLayers * bytesPerPixel
	if len(o.Data) > stagingSize {
		return nil, invalidCreateInfo("%d bytes of initial data do not fit in an image of %d bytes", len(o.Data), stagingSize)
	}
	if o.Storage == StorageDeviceLocalHostCopy && o.Data == nil {
		return nil, ErrMissingInitialData
	}

	image := &Image{
		manager: m,
		mutex: utils.OptionalRWMutex{
			UseMutex: m.useMutex,
		},
		imageType: o.ImageType,
		extent: core1_0.Extent3D{
			Width:  o.Width,
			Height: o.Height,
			Depth:  o.Depth,
		},
		arrayLayers:  o.ArrayLayers,
		mipLevels:    o.MipLevels,
		format:       o.Format,
		usage:        o.Usage | core1_0.ImageUsageTransferDst,
		aspect:       formats.Aspect(o.Format),
		targetLayout: targetLayoutForUsage(o.Usage),
		stagingSize:  stagingSize,
		storage:      o.Storage,
	}

	for i := 0; i < o.Count; i++ {
		err := image.createCopy(o.Data)
		if err != nil {
			for _, physical := range image.copies {
				image.destroyCopyNow(physical)
			}
			return nil, allocationFailed(err, "copy %d", i)
		}
	}

	if o.Storage == StorageDeviceLocalHostCopy {
		image.shadow = make([]byte, stagingSize)
		copy(image.shadow, o.Data)
	}

	return image, nil
}

func (i *Image) subresourceRange() core1_0.ImageSubresourceRange {
	return core1_0.ImageSubresourceRange{
		AspectMask:     i.aspect,
		BaseMipLevel:   0,
		LevelCount:     i.mipLevels,
		BaseArrayLayer: 0,
		LayerCount:     i.arrayLayers,
	}
}

// createCopy builds one physical copy and appends it to i.copies as soon as it holds anything, so that
// a failure partway through can be cleaned up by the caller
func (i *Image) createCopy(data []byte) error {
	m := i.manager

	image, _, err := m.driver.CreateImage(m.callbacks, core1_0.ImageCreateInfo{
		ImageType:     i.imageType,
		Format:        i.format,
		Extent:        i.extent,
		MipLevels:     i.mipLevels,
		ArrayLayers:   i.arrayLayers,
		Samples:       core1_0.Samples1,
		Tiling:        core1_0.ImageTilingOptimal,
		Usage:         i.usage,
		SharingMode:   core1_0.SharingModeExclusive,
		InitialLayout: core1_0.ImageLayoutUndefined,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create image")
	}
	i.copies = append(i.copies, imageCopy{image: image, layout: core1_0.ImageLayoutUndefined})
	physical := &i.copies[len(i.copies)-1]

	requirements := m.driver.GetImageMemoryRequirements(image)
	physical.memory, _, err = m.memory.Allocate(requirements, core1_0.MemoryPropertyDeviceLocal, m.config.ResourcePriority)
	if err != nil {
		return errors.Wrap(err, "failed to allocate image memory")
	}

	_, err = m.driver.BindImageMemory(image, physical.memory.Handle(), 0)
	if err != nil {
		return errors.Wrap(err, "failed to bind image memory")
	}

	physical.view, _, err = m.driver.CreateImageView(m.callbacks, core1_0.ImageViewCreateInfo{
		Image:            image,
		ViewType:         formats.ViewType(i.imageType, i.arrayLayers),
		Format:           i.format,
		SubresourceRange: i.subresourceRange(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create image view")
	}

	physical.staging, err = m.createBufferCopy(i.stagingSize, core1_0.BufferUsageTransferSrc, hostVisibleMemory, m.config.StagingPriority)
	if err != nil {
		return errors.Wrap(err, "failed to create staging buffer")
	}

	err = m.memory.Upload(physical.staging.memory, data)
	if err != nil {
		return errors.Wrap(err, "failed to write staging buffer")
	}

	err = i.upload(physical, nil)
	if err != nil {
		return err
	}

	if i.storage != StorageHostVisible {
		m.destroyBufferCopy(physical.staging)
		physical.staging = bufferCopy{}
	}

	return nil
}

// upload copies a copy's staging buffer into mip level 0 of the image and leaves the image in its target
// layout. With a nil fence, it blocks until the copy has completed.
func (i *Image) upload(physical *imageCopy, signalFence *core1_0.Fence) error {
	m := i.manager
	subresource := i.subresourceRange()

	err := m.submitTransfer(signalFence, func(commandBuffer core1_0.CommandBuffer) error {
		err := vulkan.CmdTransitionImageLayout(m.driver, commandBuffer, physical.image, subresource,
			physical.layout, core1_0.ImageLayoutTransferDstOptimal)
		if err != nil {
			return err
		}

		err = m.driver.CmdCopyBufferToImage(commandBuffer, physical.staging.buffer, physical.image,
			core1_0.ImageLayoutTransferDstOptimal, core1_0.BufferImageCopy{
				BufferOffset:      0,
				BufferRowLength:   0,
				BufferImageHeight: 0,
				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     formats.CopyAspect(i.aspect),
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     i.arrayLayers,
				},
				ImageOffset: core1_0.Offset3D{},
				ImageExtent: i.extent,
			})
		if err != nil {
			return err
		}

		return vulkan.CmdTransitionImageLayout(m.driver, commandBuffer, physical.image, subresource,
			core1_0.ImageLayoutTransferDstOptimal, i.targetLayout)
	})
	if err != nil {
		return errors.Wrap(err, "failed to upload image data")
	}

	physical.layout = i.targetLayout
	return nil
}

// destroyCopyNow destroys a copy immediately. Only use this for copies the device has never been handed,
// or when the transfer queue has just gone idle.
func (i *Image) destroyCopyNow(physical imageCopy) {
	m := i.manager

	if physical.view.Initialized() {
		m.driver.DestroyImageView(physical.view, m.callbacks)
	}
	if physical.image.Initialized() {
		m.driver.DestroyImage(physical.image, m.callbacks)
	}
	m.memory.Free(physical.memory)
	m.destroyBufferCopy(physical.staging)
}

// TransitionLayoutTo records a single pipeline barrier into commandBuffer moving copy copyIndex % Count()
// from its tracked layout to newLayout. Nothing is recorded if the copy is already in newLayout.
func (i *Image) TransitionLayoutTo(commandBuffer core1_0.CommandBuffer, newLayout core1_0.ImageLayout, copyIndex int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.copies == nil {
		return ErrNotCreated
	}

	physical := &i.copies[release.WrapIndex(copyIndex, len(i.copies))]
	if physical.layout == newLayout {
		return nil
	}

	err := vulkan.CmdTransitionImageLayout(i.manager.driver, commandBuffer, physical.image, i.subresourceRange(),
		physical.layout, newLayout)
	if err != nil {
		return err
	}

	physical.layout = newLayout
	return nil
}

// Layout returns the tracked layout of copy copyIndex % Count()
func (i *Image) Layout(copyIndex int) core1_0.ImageLayout {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	if i.copies == nil {
		return core1_0.ImageLayoutUndefined
	}
	return i.copies[release.WrapIndex(copyIndex, len(i.copies))].layout
}

// Map returns the texels of copy copyIndex % Count(), tightly packed. For StorageHostVisible images this is
// the copy's staging buffer, and writes reach the image on Unmap. Images holding a host copy of their
// initial data return a fresh copy of it for MapRead, and refuse MapWrite.
func (i *Image) Map(copyIndex int, flags MapFlags) ([]byte, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.copies == nil {
		return nil, ErrNotCreated
	}
	if i.mapFlags != MapNone {
		return nil, ErrAlreadyMapped
	}
	if flags&(MapRead|MapWrite) == 0 {
		return nil, errors.Wrapf(ErrInvalidMapFlags, "received %s", flags)
	}

	if i.shadow != nil {
		if flags&MapWrite != 0 {
			return nil, errors.Wrap(ErrInvalidMapFlags, "host copies are read-only")
		}

		i.mapFlags = flags
		i.mapCopy = -1
		return bytes.Clone(i.shadow), nil
	}

	index := release.WrapIndex(copyIndex, len(i.copies))
	staging := i.copies[index].staging
	if !staging.buffer.Initialized() {
		return nil, ErrNotHostAccessible
	}

	data, err := i.manager.memory.Map(staging.memory)
	if err != nil {
		return nil, err
	}

	i.mapFlags = flags
	i.mapCopy = index
	return data, nil
}

// Unmap ends the active mapping. If it was a write mapping, the staging buffer is copied into the image
// before Unmap returns. It does nothing if the image isn't mapped.
func (i *Image) Unmap(copyIndex int) error {
	return i.unmap(copyIndex, nil)
}

// UnmapAsync ends the active mapping like Unmap, but submits the copy from a write mapping without waiting
// for it. signalFence is signalled when the copy has completed, and the image must not be used by the
// device until then. The manager's next upload waits on signalFence, so it must not be reset before that.
func (i *Image) UnmapAsync(copyIndex int, signalFence core1_0.Fence) error {
	return i.unmap(copyIndex, &signalFence)
}

func (i *Image) unmap(copyIndex int, signalFence *core1_0.Fence) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.mapFlags == MapNone {
		return nil
	}

	flags := i.mapFlags
	index := i.mapCopy
	i.mapFlags = MapNone
	i.mapCopy = 0

	if index < 0 {
		return nil
	}

	if release.WrapIndex(copyIndex, len(i.copies)) != index {
		i.manager.logger.Warn("Image::Unmap called for a copy that was not mapped",
			slog.Int("copyIndex", copyIndex), slog.Int("mappedCopy", index))
	}

	physical := &i.copies[index]
	i.manager.memory.Unmap(physical.staging.memory)

	if flags&MapWrite == 0 {
		return nil
	}

	return i.upload(physical, signalFence)
}

// Handle returns the image for copy copyIndex % Count()
func (i *Image) Handle(copyIndex int) core1_0.Image {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	if i.copies == nil {
		return core1_0.Image{}
	}
	return i.copies[release.WrapIndex(copyIndex, len(i.copies))].image
}

// View returns a view covering every layer and mip level of copy copyIndex % Count()
func (i *Image) View(copyIndex int) core1_0.ImageView {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	if i.copies == nil {
		return core1_0.ImageView{}
	}
	return i.copies[release.WrapIndex(copyIndex, len(i.copies))].view
}

func (i *Image) Memory(copyIndex int) core1_0.DeviceMemory {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	if i.copies == nil {
		return core1_0.DeviceMemory{}
	}
	return i.copies[release.WrapIndex(copyIndex, len(i.copies))].memory.Handle()
}

func (i *Image) Format() core1_0.Format {
	return i.format
}

func (i *Image) Aspect() core1_0.ImageAspectFlags {
	return i.aspect
}

func (i *Image) Extent() core1_0.Extent3D {
	return i.extent
}

func (i *Image) ArrayLayers() int {
	return i.arrayLayers
}

func (i *Image) MipLevels() int {
	return i.mipLevels
}

func (i *Image) Storage() StoragePolicy {
	return i.storage
}

func (i *Image) Count() int {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return len(i.copies)
}

// Valid is true between creation and Destroy
func (i *Image) Valid() bool {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return i.copies != nil
}

// Destroy hands every copy's view, image, memory, and staging buffer to the manager's release queue at the
// current buffering index. Calling Destroy more than once is harmless.
func (i *Image) Destroy() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.copies == nil {
		return nil
	}

	m := i.manager
	m.logger.Debug("Image::Destroy")

	if i.mapFlags != MapNone && i.mapCopy >= 0 {
		m.memory.Unmap(i.copies[i.mapCopy].staging.memory)
	}

	bufferingIndex := m.BufferingIndex()
	queue := m.releaseQueue

	var err error
	for _, physical := range i.copies {
		err = errors.CombineErrors(err, queue.Release(release.ImageView{ImageView: physical.view}, bufferingIndex))
		err = errors.CombineErrors(err, queue.Release(release.Image{Image: physical.image}, bufferingIndex))
		err = errors.CombineErrors(err, m.releaseMemory(physical.memory, bufferingIndex))

		if physical.staging.buffer.Initialized() {
			err = errors.CombineErrors(err, m.releaseBufferCopy(physical.staging, bufferingIndex))
		}
	}

	i.copies = nil
	i.shadow = nil
	i.mapFlags = MapNone
	i.mapCopy = 0

	return err
}
