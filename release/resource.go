package release

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/loader"
)

// Kind identifies which variety of device object a Resource wraps
type Kind int

const (
	KindRenderPass Kind = iota
	KindShaderModule
	KindDescriptorSet
	KindDescriptorSetLayout
	KindPipeline
	KindPipelineCache
	KindPipelineLayout
	KindDescriptorPool
	KindFramebuffer
	KindBuffer
	KindImage
	KindImageView
	KindDeviceMemory
	KindSampler
	KindCommandBuffer
	KindSemaphore
	KindFence
	KindManagedMemory

	kindCount
)

var kindNames = [kindCount]string{
	KindRenderPass:          "RenderPass",
	KindShaderModule:        "ShaderModule",
	KindDescriptorSet:       "DescriptorSet",
	KindDescriptorSetLayout: "DescriptorSetLayout",
	KindPipeline:            "Pipeline",
	KindPipelineCache:       "PipelineCache",
	KindPipelineLayout:      "PipelineLayout",
	KindDescriptorPool:      "DescriptorPool",
	KindFramebuffer:         "Framebuffer",
	KindBuffer:              "Buffer",
	KindImage:               "Image",
	KindImageView:           "ImageView",
	KindDeviceMemory:        "DeviceMemory",
	KindSampler:             "Sampler",
	KindCommandBuffer:       "CommandBuffer",
	KindSemaphore:           "Semaphore",
	KindFence:               "Fence",
	KindManagedMemory:       "ManagedMemory",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "Unknown"
	}
	return kindNames[k]
}

// Resource is a single device object waiting in the queue for its frame to complete. The set of
// implementations is closed: every variety the queue knows how to destroy is declared in this file.
type Resource interface {
	Kind() Kind
	Initialized() bool

	// handle is the raw device object, which identifies the resource regardless of variant
	handle() any
	destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error
}

type RenderPass struct{ RenderPass core1_0.RenderPass }

func (r RenderPass) Kind() Kind        { return KindRenderPass }
func (r RenderPass) Initialized() bool { return r.RenderPass.Initialized() }
func (r RenderPass) handle() any       { return r.RenderPass }
func (r RenderPass) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyRenderPass(r.RenderPass, callbacks)
	return nil
}

type ShaderModule struct{ ShaderModule core1_0.ShaderModule }

func (r ShaderModule) Kind() Kind        { return KindShaderModule }
func (r ShaderModule) Initialized() bool { return r.ShaderModule.Initialized() }
func (r ShaderModule) handle() any       { return r.ShaderModule }
func (r ShaderModule) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyShaderModule(r.ShaderModule, callbacks)
	return nil
}

// DescriptorSet is returned to the pool it was allocated from. The pool must have been created with
// DescriptorPoolCreateFreeDescriptorSet.
type DescriptorSet struct{ DescriptorSet core1_0.DescriptorSet }

func (r DescriptorSet) Kind() Kind        { return KindDescriptorSet }
func (r DescriptorSet) Initialized() bool { return r.DescriptorSet.Initialized() }
func (r DescriptorSet) handle() any       { return r.DescriptorSet }
func (r DescriptorSet) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	_, err := driver.FreeDescriptorSets(r.DescriptorSet)
	return err
}

type DescriptorSetLayout struct{ DescriptorSetLayout core1_0.DescriptorSetLayout }

func (r DescriptorSetLayout) Kind() Kind        { return KindDescriptorSetLayout }
func (r DescriptorSetLayout) Initialized() bool { return r.DescriptorSetLayout.Initialized() }
func (r DescriptorSetLayout) handle() any       { return r.DescriptorSetLayout }
func (r DescriptorSetLayout) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyDescriptorSetLayout(r.DescriptorSetLayout, callbacks)
	return nil
}

type Pipeline struct{ Pipeline core1_0.Pipeline }

func (r Pipeline) Kind() Kind        { return KindPipeline }
func (r Pipeline) Initialized() bool { return r.Pipeline.Initialized() }
func (r Pipeline) handle() any       { return r.Pipeline }
func (r Pipeline) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyPipeline(r.Pipeline, callbacks)
	return nil
}

type PipelineCache struct{ PipelineCache core1_0.PipelineCache }

func (r PipelineCache) Kind() Kind        { return KindPipelineCache }
func (r PipelineCache) Initialized() bool { return r.PipelineCache.Initialized() }
func (r PipelineCache) handle() any       { return r.PipelineCache }
func (r PipelineCache) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyPipelineCache(r.PipelineCache, callbacks)
	return nil
}

type PipelineLayout struct{ PipelineLayout core1_0.PipelineLayout }

func (r PipelineLayout) Kind() Kind        { return KindPipelineLayout }
func (r PipelineLayout) Initialized() bool { return r.PipelineLayout.Initialized() }
func (r PipelineLayout) handle() any       { return r.PipelineLayout }
func (r PipelineLayout) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyPipelineLayout(r.PipelineLayout, callbacks)
	return nil
}

type DescriptorPool struct{ DescriptorPool core1_0.DescriptorPool }

func (r DescriptorPool) Kind() Kind        { return KindDescriptorPool }
func (r DescriptorPool) Initialized() bool { return r.DescriptorPool.Initialized() }
func (r DescriptorPool) handle() any       { return r.DescriptorPool }
func (r DescriptorPool) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyDescriptorPool(r.DescriptorPool, callbacks)
	return nil
}

type Framebuffer struct{ Framebuffer core1_0.Framebuffer }

func (r Framebuffer) Kind() Kind        { return KindFramebuffer }
func (r Framebuffer) Initialized() bool { return r.Framebuffer.Initialized() }
func (r Framebuffer) handle() any       { return r.Framebuffer }
func (r Framebuffer) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyFramebuffer(r.Framebuffer, callbacks)
	return nil
}

type Buffer struct{ Buffer core1_0.Buffer }

func (r Buffer) Kind() Kind        { return KindBuffer }
func (r Buffer) Initialized() bool { return r.Buffer.Initialized() }
func (r Buffer) handle() any       { return r.Buffer }
func (r Buffer) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyBuffer(r.Buffer, callbacks)
	return nil
}

type Image struct{ Image core1_0.Image }

func (r Image) Kind() Kind        { return KindImage }
func (r Image) Initialized() bool { return r.Image.Initialized() }
func (r Image) handle() any       { return r.Image }
func (r Image) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyImage(r.Image, callbacks)
	return nil
}

type ImageView struct{ ImageView core1_0.ImageView }

func (r ImageView) Kind() Kind        { return KindImageView }
func (r ImageView) Initialized() bool { return r.ImageView.Initialized() }
func (r ImageView) handle() any       { return r.ImageView }
func (r ImageView) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyImageView(r.ImageView, callbacks)
	return nil
}

// DeviceMemory is raw device memory that was allocated outside of any accounting
type DeviceMemory struct{ DeviceMemory core1_0.DeviceMemory }

func (r DeviceMemory) Kind() Kind        { return KindDeviceMemory }
func (r DeviceMemory) Initialized() bool { return r.DeviceMemory.Initialized() }
func (r DeviceMemory) handle() any       { return r.DeviceMemory }
func (r DeviceMemory) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.FreeMemory(r.DeviceMemory, callbacks)
	return nil
}

type Sampler struct{ Sampler core1_0.Sampler }

func (r Sampler) Kind() Kind        { return KindSampler }
func (r Sampler) Initialized() bool { return r.Sampler.Initialized() }
func (r Sampler) handle() any       { return r.Sampler }
func (r Sampler) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroySampler(r.Sampler, callbacks)
	return nil
}

type CommandBuffer struct{ CommandBuffer core1_0.CommandBuffer }

func (r CommandBuffer) Kind() Kind        { return KindCommandBuffer }
func (r CommandBuffer) Initialized() bool { return r.CommandBuffer.Initialized() }
func (r CommandBuffer) handle() any       { return r.CommandBuffer }
func (r CommandBuffer) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.FreeCommandBuffers(r.CommandBuffer)
	return nil
}

type Semaphore struct{ Semaphore core1_0.Semaphore }

func (r Semaphore) Kind() Kind        { return KindSemaphore }
func (r Semaphore) Initialized() bool { return r.Semaphore.Initialized() }
func (r Semaphore) handle() any       { return r.Semaphore }
func (r Semaphore) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroySemaphore(r.Semaphore, callbacks)
	return nil
}

type Fence struct{ Fence core1_0.Fence }

func (r Fence) Kind() Kind        { return KindFence }
func (r Fence) Initialized() bool { return r.Fence.Initialized() }
func (r Fence) handle() any       { return r.Fence }
func (r Fence) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	driver.DestroyFence(r.Fence, callbacks)
	return nil
}

// MemoryFreer returns memory to whatever allocated it, so that its accounting stays correct
type MemoryFreer interface {
	FreeMemory(memory core1_0.DeviceMemory, memoryType int, size int)
}

// ManagedMemory is device memory that must be returned through the allocator that made it
type ManagedMemory struct {
	Memory     core1_0.DeviceMemory
	MemoryType int
	Size       int
	Allocator  MemoryFreer
}

func (r ManagedMemory) Kind() Kind        { return KindManagedMemory }
func (r ManagedMemory) Initialized() bool { return r.Memory.Initialized() }
func (r ManagedMemory) handle() any       { return r.Memory }
func (r ManagedMemory) destroy(driver core1_0.DeviceDriver, callbacks *loader.AllocationCallbacks) error {
	if r.Allocator == nil {
		driver.FreeMemory(r.Memory, callbacks)
		return nil
	}

	r.Allocator.FreeMemory(r.Memory, r.MemoryType, r.Size)
	return nil
}
