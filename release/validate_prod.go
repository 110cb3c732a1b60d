//go:build !debug_inflight

package release

// debugValidate no-ops unless the debug_inflight build tag is present
func (q *Queue) debugValidate() {
}
