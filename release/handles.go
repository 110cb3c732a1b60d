package release

import "github.com/vkngwrapper/core/v3/core1_0"

func releaseHandle[H any](q *Queue, handle *H, wrap func(H) Resource, bufferingIndex int) error {
	err := q.Release(wrap(*handle), bufferingIndex)
	if err != nil {
		return err
	}

	var null H
	*handle = null
	return nil
}

// The Release* helpers queue a single handle and then null out the caller's copy of it, so that
// code holding the handle can't use it after it has been handed over.

func (q *Queue) ReleaseRenderPass(renderPass *core1_0.RenderPass, bufferingIndex int) error {
	return releaseHandle(q, renderPass, func(h core1_0.RenderPass) Resource { return RenderPass{h} }, bufferingIndex)
}

func (q *Queue) ReleaseShaderModule(shaderModule *core1_0.ShaderModule, bufferingIndex int) error {
	return releaseHandle(q, shaderModule, func(h core1_0.ShaderModule) Resource { return ShaderModule{h} }, bufferingIndex)
}

func (q *Queue) ReleaseDescriptorSet(set *core1_0.DescriptorSet, bufferingIndex int) error {
	return releaseHandle(q, set, func(h core1_0.DescriptorSet) Resource { return DescriptorSet{h} }, bufferingIndex)
}

func (q *Queue) ReleaseDescriptorSetLayout(layout *core1_0.DescriptorSetLayout, bufferingIndex int) error {
	return releaseHandle(q, layout, func(h core1_0.DescriptorSetLayout) Resource { return DescriptorSetLayout{h} }, bufferingIndex)
}

func (q *Queue) ReleasePipeline(pipeline *core1_0.Pipeline, bufferingIndex int) error {
	return releaseHandle(q, pipeline, func(h core1_0.Pipeline) Resource { return Pipeline{h} }, bufferingIndex)
}

func (q *Queue) ReleasePipelineCache(cache *core1_0.PipelineCache, bufferingIndex int) error {
	return releaseHandle(q, cache, func(h core1_0.PipelineCache) Resource { return PipelineCache{h} }, bufferingIndex)
}

func (q *Queue) ReleasePipelineLayout(layout *core1_0.PipelineLayout, bufferingIndex int) error {
	return releaseHandle(q, layout, func(h core1_0.PipelineLayout) Resource { return PipelineLayout{h} }, bufferingIndex)
}

func (q *Queue) ReleaseDescriptorPool(pool *core1_0.DescriptorPool, bufferingIndex int) error {
	return releaseHandle(q, pool, func(h core1_0.DescriptorPool) Resource { return DescriptorPool{h} }, bufferingIndex)
}

func (q *Queue) ReleaseFramebuffer(framebuffer *core1_0.Framebuffer, bufferingIndex int) error {
	return releaseHandle(q, framebuffer, func(h core1_0.Framebuffer) Resource { return Framebuffer{h} }, bufferingIndex)
}

func (q *Queue) ReleaseBuffer(buffer *core1_0.Buffer, bufferingIndex int) error {
	return releaseHandle(q, buffer, func(h core1_0.Buffer) Resource { return Buffer{h} }, bufferingIndex)
}

func (q *Queue) ReleaseImage(image *core1_0.Image, bufferingIndex int) error {
	return releaseHandle(q, image, func(h core1_0.Image) Resource { return Image{h} }, bufferingIndex)
}

func (q *Queue) ReleaseImageView(view *core1_0.ImageView, bufferingIndex int) error {
	return releaseHandle(q, view, func(h core1_0.ImageView) Resource { return ImageView{h} }, bufferingIndex)
}

func (q *Queue) ReleaseDeviceMemory(memory *core1_0.DeviceMemory, bufferingIndex int) error {
	return releaseHandle(q, memory, func(h core1_0.DeviceMemory) Resource { return DeviceMemory{h} }, bufferingIndex)
}

func (q *Queue) ReleaseSampler(sampler *core1_0.Sampler, bufferingIndex int) error {
	return releaseHandle(q, sampler, func(h core1_0.Sampler) Resource { return Sampler{h} }, bufferingIndex)
}

func (q *Queue) ReleaseCommandBuffer(commandBuffer *core1_0.CommandBuffer, bufferingIndex int) error {
	return releaseHandle(q, commandBuffer, func(h core1_0.CommandBuffer) Resource { return CommandBuffer{h} }, bufferingIndex)
}

func (q *Queue) ReleaseSemaphore(semaphore *core1_0.Semaphore, bufferingIndex int) error {
	return releaseHandle(q, semaphore, func(h core1_0.Semaphore) Resource { return Semaphore{h} }, bufferingIndex)
}

func (q *Queue) ReleaseFence(fence *core1_0.Fence, bufferingIndex int) error {
	return releaseHandle(q, fence, func(h core1_0.Fence) Resource { return Fence{h} }, bufferingIndex)
}
