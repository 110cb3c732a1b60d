package inflight

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"go.uber.org/mock/gomock"
)

func (h *harness) readyFrameSync() *FrameSync {
	h.driver.EXPECT().CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: core1_0.FenceCreateSignaled,
	}).Return(core1_0.Fence{}, core1_0.VKSuccess, nil).Times(h.manager.BufferingCount())

	sync, err := h.manager.CreateFrameSync()
	require.NoError(h.t, err)
	return sync
}

func TestFrameSyncBegin(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := readyManager(t, ctrl, DefaultConfig(), CreateOptions{})
	sync := h.readyFrameSync()
	require.Equal(t, 2, sync.Count())

	buffer, memory := h.expectBufferCopy(16, core1_0.BufferUsageUniformBuffer, deviceLocalType)
	created, err := h.manager.CreateBuffer(BufferCreateInfo{
		Count: 1,
		Size:  16,
		Usage: core1_0.BufferUsageUniformBuffer,
	})
	require.NoError(t, err)

	h.driver.EXPECT().WaitForFences(true, common.NoTimeout, core1_0.Fence{}).Return(core1_0.VKSuccess, nil).Times(3)
	h.driver.EXPECT().ResetFences(core1_0.Fence{}).Return(core1_0.VKSuccess, nil).Times(3)

	slot, err := sync.Begin(4)
	require.NoError(t, err)
	require.Equal(t, 0, slot)
	require.Equal(t, 0, h.manager.BufferingIndex())

	// Destroyed while recording slot 0
	require.NoError(t, created.Destroy())

	slot, err = sync.Begin(5)
	require.NoError(t, err)
	require.Equal(t, 1, slot)
	require.Equal(t, 1, h.manager.BufferingIndex())
	require.Equal(t, 2, h.manager.ReleaseQueue().PendingCount())

	h.expectDestroyBuffer(buffer, memory)
	slot, err = sync.Begin(6)
	require.NoError(t, err)
	require.Equal(t, 0, slot)
	require.Equal(t, 0, h.manager.ReleaseQueue().PendingCount())

	require.NoError(t, sync.Destroy())
	require.Equal(t, 0, sync.Count())
	_, err = sync.Begin(0)
	require.ErrorIs(t, err, ErrNotCreated)
}

func TestFrameSyncSkipsOnFenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := readyManager(t, ctrl, DefaultConfig(), CreateOptions{})
	sync := h.readyFrameSync()

	h.manager.SetBufferingIndex(1)

	h.driver.EXPECT().WaitForFences(true, common.NoTimeout, core1_0.Fence{}).
		Return(core1_0.VKErrorDeviceLost, core1_0.VKErrorDeviceLost.ToError())

	slot, err := sync.Begin(0)
	require.Equal(t, 0, slot)
	require.ErrorIs(t, err, ErrFrameSkipped)
	// Nothing moved
	require.Equal(t, 1, h.manager.BufferingIndex())

	h.driver.EXPECT().WaitForFences(true, common.NoTimeout, core1_0.Fence{}).Return(core1_0.VKSuccess, nil)
	h.driver.EXPECT().ResetFences(core1_0.Fence{}).
		Return(core1_0.VKErrorOutOfDeviceMemory, core1_0.VKErrorOutOfDeviceMemory.ToError())

	_, err = sync.Begin(0)
	require.ErrorIs(t, err, ErrFrameSkipped)
	require.Equal(t, 1, h.manager.BufferingIndex())
}

func TestCreateFrameSyncFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := readyManager(t, ctrl, DefaultConfig(), CreateOptions{})

	h.driver.EXPECT().CreateFence(nil, gomock.Any()).Return(core1_0.Fence{}, core1_0.VKSuccess, nil)
	h.driver.EXPECT().CreateFence(nil, gomock.Any()).
		Return(core1_0.Fence{}, core1_0.VKErrorOutOfHostMemory, core1_0.VKErrorOutOfHostMemory.ToError())
	h.driver.EXPECT().DestroyFence(core1_0.Fence{}, nil)

	sync, err := h.manager.CreateFrameSync()
	require.Nil(t, sync)
	require.ErrorIs(t, err, ErrAllocationFailed)
}
