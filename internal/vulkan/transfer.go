package vulkan

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// TransferChannel owns a single primary command buffer that is reset and re-recorded for each batch
// of copy and barrier commands issued outside of the per-frame command stream.
type TransferChannel struct {
	logger *slog.Logger
	driver core1_0.DeviceDriver
	queue  core1_0.Queue

	commandBuffer core1_0.CommandBuffer
	recording     bool
	// Signalled when the last batch submitted without waiting has completed
	pendingFence *core1_0.Fence
}

func NewTransferChannel(logger *slog.Logger, driver core1_0.DeviceDriver, queue core1_0.Queue, commandPool core1_0.CommandPool) (*TransferChannel, error) {
	buffers, _, err := driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate the transfer command buffer")
	}

	return &TransferChannel{
		logger:        logger,
		driver:        driver,
		queue:         queue,
		commandBuffer: buffers[0],
	}, nil
}

// Begin resets the command buffer and begins recording a new batch. If the previous batch was submitted
// without waiting, Begin first waits for its fence.
func (c *TransferChannel) Begin() error {
	if c.recording {
		return ErrTransferInProgress
	}

	if c.pendingFence != nil {
		_, err := c.driver.WaitForFences(true, common.NoTimeout, *c.pendingFence)
		if err != nil {
			return errors.Wrap(err, "failed waiting for the previous transfer")
		}
		c.pendingFence = nil
	}

	_, err := c.driver.ResetCommandBuffer(c.commandBuffer, 0)
	if err != nil {
		return errors.Wrap(err, "failed to reset the transfer command buffer")
	}

	_, err = c.driver.BeginCommandBuffer(c.commandBuffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "failed to begin the transfer command buffer")
	}

	c.recording = true
	return nil
}

// CommandBuffer is the command buffer the current batch should be recorded into
func (c *TransferChannel) CommandBuffer() core1_0.CommandBuffer {
	return c.commandBuffer
}

func (c *TransferChannel) Recording() bool {
	return c.recording
}

// End finishes recording and submits the batch. If signalFence is not nil, it will be signalled when the batch
// completes. If waitForQueueIdle is true, End blocks until the queue has drained. Otherwise the next Begin
// waits on signalFence, so the caller must not reset it before then.
func (c *TransferChannel) End(waitForQueueIdle bool, signalFence *core1_0.Fence) error {
	if !c.recording {
		return ErrTransferNotStarted
	}
	c.recording = false

	_, err := c.driver.EndCommandBuffer(c.commandBuffer)
	if err != nil {
		return errors.Wrap(err, "failed to end the transfer command buffer")
	}

	_, err = c.driver.QueueSubmit(c.queue, signalFence, core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{c.commandBuffer},
	})
	if err != nil {
		return errors.Wrap(err, "failed to submit the transfer command buffer")
	}

	if waitForQueueIdle {
		_, err = c.driver.QueueWaitIdle(c.queue)
		if err != nil {
			return errors.Wrap(err, "failed waiting for the transfer queue")
		}
	} else if signalFence != nil {
		fence := *signalFence
		c.pendingFence = &fence
	}

	return nil
}

// Abort drops the batch being recorded without submitting it. The command buffer is reset by the next Begin.
func (c *TransferChannel) Abort() {
	if c.recording {
		c.logger.Debug("TransferChannel::Abort")
	}
	c.recording = false
}

func (c *TransferChannel) Destroy() {
	c.driver.FreeCommandBuffers(c.commandBuffer)
}
