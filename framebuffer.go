package inflight

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/inflight/internal/utils"
	"github.com/vkngwrapper/inflight/release"
)

// FrameBuffer is a set of framebuffers, one per buffered copy of its attachments
type FrameBuffer struct {
	manager *Manager
	mutex   utils.OptionalRWMutex

	framebuffers []core1_0.Framebuffer
	// Owned depth attachment, only set for swapchain framebuffers
	depth  *Image
	width  int
	height int
}

// CreateFrameBuffer builds one framebuffer per buffering slot. Framebuffer i uses copy i of each color
// image, in order, followed by copy i of depth if depth is not nil. The images remain owned by the caller
// and must outlive the FrameBuffer.
func (m *Manager) CreateFrameBuffer(renderPass core1_0.RenderPass, colors []*Image, depth *Image, width, height int) (*FrameBuffer, error) {
	m.logger.Debug("Manager::CreateFrameBuffer", slog.Int("colorAttachments", len(colors)), slog.Bool("depth", depth != nil))

	count := m.BufferingCount()
	attachments := make([][]core1_0.ImageView, count)
	for i := range attachments {
		for _, color := range colors {
			attachments[i] = append(attachments[i], color.View(i))
		}
		if depth != nil {
			attachments[i] = append(attachments[i], depth.View(i))
		}
	}

	return m.createFrameBuffer(renderPass, attachments, nil, width, height)
}

// CreateSwapchainFrameBuffer builds one framebuffer per swapchain image view. If depthFormat is not
// FormatUndefined, the FrameBuffer creates and owns a depth attachment with one copy per swapchain view,
// and destroys it along with the framebuffers.
func (m *Manager) CreateSwapchainFrameBuffer(
	renderPass core1_0.RenderPass,
	swapchainViews []core1_0.ImageView,
	depthFormat core1_0.Format,
	width, height int,
) (*FrameBuffer, error) {
	m.logger.Debug("Manager::CreateSwapchainFrameBuffer", slog.Int("swapchainViews", len(swapchainViews)))

	if len(swapchainViews) == 0 {
		return nil, invalidCreateInfo("no swapchain image views were provided")
	}

	var depth *Image
	if depthFormat != core1_0.FormatUndefined {
		var err error
		depth, err = m.CreateImage(ImageCreateInfo{
			Count:     len(swapchainViews),
			ImageType: core1_0.ImageType2D,
			Width:     width,
			Height:    height,
			Format:    depthFormat,
			Usage:     core1_0.ImageUsageDepthStencilAttachment,
			Storage:   StorageDeviceLocal,
		})
		if err != nil {
			return nil, err
		}
	}

	attachments := make([][]core1_0.ImageView, len(swapchainViews))
	for i, view := range swapchainViews {
		attachments[i] = []core1_0.ImageView{view}
		if depth != nil {
			attachments[i] = append(attachments[i], depth.View(i))
		}
	}

	frameBuffer, err := m.createFrameBuffer(renderPass, attachments, depth, width, height)
	if err != nil && depth != nil {
		// The depth image has been through a completed upload and nothing else, so it can go to the queue
		// without waiting on any frame
		err = errors.CombineErrors(err, depth.Destroy())
	}
	return frameBuffer, err
}

func (m *Manager) createFrameBuffer(
	renderPass core1_0.RenderPass,
	attachments [][]core1_0.ImageView,
	depth *Image,
	width, height int,
) (*FrameBuffer, error) {
	frameBuffer := &FrameBuffer{
		manager: m,
		mutex: utils.OptionalRWMutex{
			UseMutex: m.useMutex,
		},
		depth:  depth,
		width:  width,
		height: height,
	}

	for i, views := range attachments {
		framebuffer, _, err := m.driver.CreateFramebuffer(m.callbacks, core1_0.FramebufferCreateInfo{
			RenderPass:  renderPass,
			Attachments: views,
			Width:       width,
			Height:      height,
			Layers:      1,
		})
		if err != nil {
			for _, created := range frameBuffer.framebuffers {
				m.driver.DestroyFramebuffer(created, m.callbacks)
			}
			return nil, allocationFailed(err, "framebuffer %d", i)
		}

		frameBuffer.framebuffers = append(frameBuffer.framebuffers, framebuffer)
	}

	return frameBuffer, nil
}

// Handle returns framebuffer index % Count()
func (f *FrameBuffer) Handle(index int) core1_0.Framebuffer {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if f.framebuffers == nil {
		return core1_0.Framebuffer{}
	}
	return f.framebuffers[release.WrapIndex(index, len(f.framebuffers))]
}

// Depth is the owned depth attachment of a swapchain FrameBuffer, or nil
func (f *FrameBuffer) Depth() *Image {
	return f.depth
}

func (f *FrameBuffer) Count() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	return len(f.framebuffers)
}

func (f *FrameBuffer) Width() int {
	return f.width
}

func (f *FrameBuffer) Height() int {
	return f.height
}

// Destroy hands every framebuffer, and the owned depth attachment if there is one, to the manager's
// release queue at the current buffering index. Calling Destroy more than once is harmless.
func (f *FrameBuffer) Destroy() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.framebuffers == nil {
		return nil
	}

	m := f.manager
	m.logger.Debug("FrameBuffer::Destroy")

	bufferingIndex := m.BufferingIndex()

	var err error
	for i := range f.framebuffers {
		err = errors.CombineErrors(err, m.releaseQueue.ReleaseFramebuffer(&f.framebuffers[i], bufferingIndex))
	}
	f.framebuffers = nil

	if f.depth != nil {
		err = errors.CombineErrors(err, f.depth.Destroy())
		f.depth = nil
	}

	return err
}
