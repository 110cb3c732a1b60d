package vulkan

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// LayoutBarrier holds the access masks and pipeline stages needed to move an image between two layouts
type LayoutBarrier struct {
	SrcAccessMask core1_0.AccessFlags
	DstAccessMask core1_0.AccessFlags
	SrcStageMask  core1_0.PipelineStageFlags
	DstStageMask  core1_0.PipelineStageFlags
}

// BarrierForLayouts derives the source scope from the layout being left and the destination scope from the
// layout being entered.
func BarrierForLayouts(oldLayout, newLayout core1_0.ImageLayout) LayoutBarrier {
	var barrier LayoutBarrier

	switch oldLayout {
	case core1_0.ImageLayoutUndefined:
		barrier.SrcStageMask = core1_0.PipelineStageTopOfPipe
	case core1_0.ImageLayoutPreInitialized:
		barrier.SrcAccessMask = core1_0.AccessHostWrite
		barrier.SrcStageMask = core1_0.PipelineStageHost
	case core1_0.ImageLayoutColorAttachmentOptimal:
		barrier.SrcAccessMask = core1_0.AccessColorAttachmentWrite
		barrier.SrcStageMask = core1_0.PipelineStageColorAttachmentOutput
	case core1_0.ImageLayoutDepthStencilAttachmentOptimal:
		barrier.SrcAccessMask = core1_0.AccessDepthStencilAttachmentWrite
		barrier.SrcStageMask = core1_0.PipelineStageLateFragmentTests
	case core1_0.ImageLayoutTransferSrcOptimal:
		barrier.SrcAccessMask = core1_0.AccessTransferRead
		barrier.SrcStageMask = core1_0.PipelineStageTransfer
	case core1_0.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = core1_0.AccessTransferWrite
		barrier.SrcStageMask = core1_0.PipelineStageTransfer
	case core1_0.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = core1_0.AccessShaderRead
		barrier.SrcStageMask = core1_0.PipelineStageFragmentShader
	default:
		barrier.SrcAccessMask = core1_0.AccessMemoryWrite
		barrier.SrcStageMask = core1_0.PipelineStageAllCommands
	}

	switch newLayout {
	case core1_0.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = core1_0.AccessTransferWrite
		barrier.DstStageMask = core1_0.PipelineStageTransfer
	case core1_0.ImageLayoutTransferSrcOptimal:
		barrier.DstAccessMask = core1_0.AccessTransferRead
		barrier.DstStageMask = core1_0.PipelineStageTransfer
	case core1_0.ImageLayoutColorAttachmentOptimal:
		barrier.DstAccessMask = core1_0.AccessColorAttachmentWrite
		barrier.DstStageMask = core1_0.PipelineStageColorAttachmentOutput
	case core1_0.ImageLayoutDepthStencilAttachmentOptimal:
		barrier.DstAccessMask = core1_0.AccessDepthStencilAttachmentWrite
		barrier.DstStageMask = core1_0.PipelineStageEarlyFragmentTests
	case core1_0.ImageLayoutShaderReadOnlyOptimal:
		if barrier.SrcAccessMask == 0 {
			// Nothing wrote through the old layout on the device, so the data came from the host or a copy
			barrier.SrcAccessMask = core1_0.AccessHostWrite | core1_0.AccessTransferWrite
		}
		barrier.DstAccessMask = core1_0.AccessShaderRead
		barrier.DstStageMask = core1_0.PipelineStageFragmentShader
	default:
		barrier.DstAccessMask = core1_0.AccessMemoryRead | core1_0.AccessMemoryWrite
		barrier.DstStageMask = core1_0.PipelineStageAllCommands
	}

	return barrier
}

// CmdTransitionImageLayout records a single pipeline barrier moving the subresource range of image from
// oldLayout to newLayout
func CmdTransitionImageLayout(
	driver core1_0.DeviceDriver,
	commandBuffer core1_0.CommandBuffer,
	image core1_0.Image,
	subresourceRange core1_0.ImageSubresourceRange,
	oldLayout, newLayout core1_0.ImageLayout,
) error {
	barrier := BarrierForLayouts(oldLayout, newLayout)

	return driver.CmdPipelineBarrier(commandBuffer, barrier.SrcStageMask, barrier.DstStageMask, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange:    subresourceRange,
			SrcAccessMask:       barrier.SrcAccessMask,
			DstAccessMask:       barrier.DstAccessMask,
		},
	})
}
