package release

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/loader"
	"github.com/vkngwrapper/inflight/internal/utils"
)

// CreateOptions contains optional settings when creating a Queue
type CreateOptions struct {
	// AllocationCallbacks is passed to every Destroy call the queue makes
	AllocationCallbacks *loader.AllocationCallbacks
	// ExternallySynchronized disables the queue's internal mutex
	ExternallySynchronized bool
}

// Queue holds device objects that the CPU no longer needs but that a frame still in flight might. Each
// buffering slot owns two buckets, one per generation, and a resource's bucket is chosen when it is
// released. Destruction happens only in ReleaseFrameResources and ReleaseAllResources.
type Queue struct {
	logger    *slog.Logger
	driver    core1_0.DeviceDriver
	callbacks *loader.AllocationCallbacks
	mutex     utils.OptionalRWMutex

	bufferingCount int
	buckets        [][]Resource
	// Maps the handle of every pending resource to the bucket holding it
	registry *swiss.Map[any, int]
	// Slot most recently passed to ReleaseFrameResources, or -1 when no frame has been processed
	// since the queue was created or drained
	lastFrameSlot int

	stats Statistics
}

func New(logger *slog.Logger, driver core1_0.DeviceDriver, bufferingCount int, options CreateOptions) (*Queue, error) {
	if bufferingCount < 1 {
		return nil, errors.Wrapf(ErrInvalidBufferingCount, "received %d", bufferingCount)
	}

	queue := &Queue{
		logger:    logger,
		driver:    driver,
		callbacks: options.AllocationCallbacks,
		mutex: utils.OptionalRWMutex{
			UseMutex: !options.ExternallySynchronized,
		},
		registry:      swiss.NewMap[any, int](64),
		lastFrameSlot: -1,
	}
	queue.resize(bufferingCount)

	return queue, nil
}

func (q *Queue) resize(bufferingCount int) {
	q.bufferingCount = bufferingCount
	q.buckets = make([][]Resource, 2*bufferingCount)
}

func (q *Queue) BufferingCount() int {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return q.bufferingCount
}

// PendingCount is the number of resources waiting to be destroyed
func (q *Queue) PendingCount() int {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return q.registry.Count()
}

func (q *Queue) Statistics() Statistics {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	stats := q.stats
	stats.Pending = q.registry.Count()
	return stats
}

// Release queues resource for destruction once the frame using buffering slot bufferingIndex has
// completed. Resources with null handles are ignored. A resource that is already pending is rejected with
// ErrAlreadyPending and stays in the bucket it was first released to.
func (q *Queue) Release(resource Resource, bufferingIndex int) error {
	if resource == nil || !resource.Initialized() {
		return nil
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.releaseLocked(resource, bufferingIndex)
}

func (q *Queue) releaseLocked(resource Resource, bufferingIndex int) error {
	if q.registry.Has(resource.handle()) {
		q.stats.Rejected++
		q.logger.Warn("Queue::Release rejected a resource that is already pending", slog.String("kind", resource.Kind().String()))
		return errors.Wrapf(ErrAlreadyPending, "%s", resource.Kind())
	}

	slot := WrapIndex(bufferingIndex, q.bufferingCount)

	// Once this slot's fence has been processed for the current frame, the next time it is processed is
	// after the frame recording now completes. Before that, the next processing belongs to the frame
	// that is still in flight, so the resource has to wait a further cycle.
	generation := 1
	if q.lastFrameSlot < 0 || q.lastFrameSlot == slot {
		generation = 0
	}

	bucketIndex := SlotIndex(slot, generation, q.bufferingCount)
	q.buckets[bucketIndex] = append(q.buckets[bucketIndex], resource)
	q.registry.Put(resource.handle(), bucketIndex)
	q.stats.Released++

	q.debugValidate()
	return nil
}

// ReleaseFrameResources should be called once the completion fence for buffering slot bufferingIndex has
// signalled. It destroys everything in the slot's generation 0 bucket and promotes generation 1 into its
// place. Destruction continues past failures, and every failure is returned.
func (q *Queue) ReleaseFrameResources(bufferingIndex int) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.logger.Debug("Queue::ReleaseFrameResources", slog.Int("bufferingIndex", bufferingIndex))

	slot := WrapIndex(bufferingIndex, q.bufferingCount)
	current := SlotIndex(slot, 0, q.bufferingCount)
	next := SlotIndex(slot, 1, q.bufferingCount)

	err := q.destroyBucket(current)

	q.buckets[current], q.buckets[next] = q.buckets[next], q.buckets[current][:0]
	for _, resource := range q.buckets[current] {
		q.registry.Put(resource.handle(), current)
	}

	q.lastFrameSlot = slot

	q.debugValidate()
	return err
}

// ReleaseAllResources destroys every pending resource regardless of slot. The device must be idle. If
// newBufferingCount is greater than zero, the ring is rebuilt with that many slots.
func (q *Queue) ReleaseAllResources(newBufferingCount int) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.logger.Debug("Queue::ReleaseAllResources", slog.Int("newBufferingCount", newBufferingCount))

	var err error
	for bucketIndex := range q.buckets {
		err = errors.CombineErrors(err, q.destroyBucket(bucketIndex))
	}
	q.registry.Clear()

	if newBufferingCount > 0 && newBufferingCount != q.bufferingCount {
		q.resize(newBufferingCount)
	}
	q.lastFrameSlot = -1

	q.debugValidate()
	return err
}

func (q *Queue) destroyBucket(bucketIndex int) error {
	var err error

	bucket := q.buckets[bucketIndex]
	for i, resource := range bucket {
		q.registry.Delete(resource.handle())

		destroyErr := resource.destroy(q.driver, q.callbacks)
		if destroyErr != nil {
			q.stats.Failed++
			err = errors.CombineErrors(err, errors.Wrapf(destroyErr, "failed to destroy %s", resource.Kind()))
		}
		q.stats.Destroyed++

		bucket[i] = nil
	}
	q.buckets[bucketIndex] = bucket[:0]

	return err
}

// Validate checks that every pending resource appears in exactly one bucket and that the registry agrees
// with the buckets about which one
func (q *Queue) Validate() error {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return q.validateLocked()
}

func (q *Queue) validateLocked() error {
	if len(q.buckets) != 2*q.bufferingCount {
		return errors.Newf("queue has %d buckets for a buffering count of %d", len(q.buckets), q.bufferingCount)
	}

	total := 0
	for bucketIndex, bucket := range q.buckets {
		for _, resource := range bucket {
			registered, ok := q.registry.Get(resource.handle())
			if !ok {
				return errors.Newf("%s in bucket %d is missing from the registry", resource.Kind(), bucketIndex)
			}
			if registered != bucketIndex {
				return errors.Newf("%s in bucket %d is registered to bucket %d", resource.Kind(), bucketIndex, registered)
			}
			total++
		}
	}

	if total != q.registry.Count() {
		return errors.Newf("buckets hold %d resources but %d are registered", total, q.registry.Count())
	}

	return nil
}
