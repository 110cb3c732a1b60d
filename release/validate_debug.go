//go:build debug_inflight

package release

// debugValidate calls Validate after every mutation and panics if the queue is inconsistent. This
// method no-ops unless the debug_inflight build tag is present.
func (q *Queue) debugValidate() {
	err := q.validateLocked()
	if err != nil {
		panic(err)
	}
}
