package inflight

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/inflight/release"
)

// FrameSync owns one completion fence per buffering slot and drives the manager's frame cycle
type FrameSync struct {
	manager *Manager
	fences  []core1_0.Fence
}

// CreateFrameSync creates one fence per buffering slot. Each starts signalled, so the first frame on
// every slot begins without waiting.
func (m *Manager) CreateFrameSync() (*FrameSync, error) {
	m.logger.Debug("Manager::CreateFrameSync")

	sync := &FrameSync{
		manager: m,
	}

	for i := 0; i < m.BufferingCount(); i++ {
		fence, _, err := m.driver.CreateFence(m.callbacks, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			for _, created := range sync.fences {
				m.driver.DestroyFence(created, m.callbacks)
			}
			return nil, allocationFailed(err, "fence %d", i)
		}

		sync.fences = append(sync.fences, fence)
	}

	return sync, nil
}

// Begin starts frame frameIndex. It waits for the fence of the frame's slot, resets it, destroys whatever
// was waiting on that slot, and makes the slot the manager's buffering index. The returned slot's fence
// should be signalled by the frame's final queue submission.
//
// If the wait or reset fails, the returned error matches ErrFrameSkipped: nothing else has been
// done and the frame should be skipped.
func (s *FrameSync) Begin(frameIndex int) (int, error) {
	if s.fences == nil {
		return 0, ErrNotCreated
	}

	m := s.manager
	slot := release.WrapIndex(frameIndex, len(s.fences))
	fence := s.fences[slot]

	_, err := m.driver.WaitForFences(true, common.NoTimeout, fence)
	if err != nil {
		m.logger.Warn("FrameSync::Begin failed waiting for frame fence", slog.Int("slot", slot))
		return slot, errors.Join(ErrFrameSkipped, errors.Wrapf(err, "failed waiting for the fence of slot %d", slot))
	}

	_, err = m.driver.ResetFences(fence)
	if err != nil {
		m.logger.Warn("FrameSync::Begin failed resetting frame fence", slog.Int("slot", slot))
		return slot, errors.Join(ErrFrameSkipped, errors.Wrapf(err, "failed resetting the fence of slot %d", slot))
	}

	err = m.ReleaseFrameResources(slot)
	m.SetBufferingIndex(slot)

	return slot, err
}

// Fence returns the completion fence for slot % Count()
func (s *FrameSync) Fence(slot int) core1_0.Fence {
	if s.fences == nil {
		return core1_0.Fence{}
	}
	return s.fences[release.WrapIndex(slot, len(s.fences))]
}

func (s *FrameSync) Count() int {
	return len(s.fences)
}

// Destroy hands every fence to the manager's release queue at the current buffering index
func (s *FrameSync) Destroy() error {
	if s.fences == nil {
		return nil
	}

	m := s.manager
	bufferingIndex := m.BufferingIndex()

	var err error
	for i := range s.fences {
		err = errors.CombineErrors(err, m.releaseQueue.ReleaseFence(&s.fences[i], bufferingIndex))
	}
	s.fences = nil

	return err
}
