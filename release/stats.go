package release

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics counts the traffic through a Queue since it was created
type Statistics struct {
	// Resources currently waiting for their frame to complete
	Pending int
	// Resources accepted by Release over the queue's lifetime
	Released int
	// Resources whose destruction has run
	Destroyed int
	// Releases turned away because the resource was already pending
	Rejected int
	// Destructions that reported an error
	Failed int
}

// BuildStatsString writes a JSON object describing the queue's counters and the contents of every bucket
func (q *Queue) BuildStatsString(writer *jwriter.Writer) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	obj := writer.Object()
	defer obj.End()

	obj.Name("BufferingCount").Int(q.bufferingCount)
	obj.Name("Pending").Int(q.registry.Count())
	obj.Name("Released").Int(q.stats.Released)
	obj.Name("Destroyed").Int(q.stats.Destroyed)
	obj.Name("Rejected").Int(q.stats.Rejected)
	obj.Name("Failed").Int(q.stats.Failed)

	buckets := obj.Name("Buckets").Object()
	for generation := 0; generation < 2; generation++ {
		for bufferingIndex := 0; bufferingIndex < q.bufferingCount; bufferingIndex++ {
			bucket := q.buckets[SlotIndex(bufferingIndex, generation, q.bufferingCount)]
			if len(bucket) == 0 {
				continue
			}

			var kindCounts [kindCount]int
			for _, resource := range bucket {
				kindCounts[resource.Kind()]++
			}

			bucketObj := buckets.Name(strconv.Itoa(bufferingIndex) + "/" + strconv.Itoa(generation)).Object()
			bucketObj.Name("Slot").Int(bufferingIndex)
			bucketObj.Name("Generation").Int(generation)
			bucketObj.Name("Count").Int(len(bucket))
			kinds := bucketObj.Name("Kinds").Object()
			for kind, count := range kindCounts {
				if count > 0 {
					kinds.Name(Kind(kind).String()).Int(count)
				}
			}
			kinds.End()
			bucketObj.End()
		}
	}
	buckets.End()
}
