package release

// SlotIndex maps a buffering slot and generation onto a bucket in the release ring. Generation 0 of a slot
// is destroyed the next time that slot's frame completes, generation 1 one full cycle after that.
func SlotIndex(bufferingIndex, generation, bufferingCount int) int {
	return generation*bufferingCount + bufferingIndex
}

// WrapIndex folds any frame or buffering index, including negative ones, into [0, count)
func WrapIndex(index, count int) int {
	index %= count
	if index < 0 {
		index += count
	}
	return index
}
