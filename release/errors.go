package release

import "github.com/pkg/errors"

// ErrAlreadyPending is returned when a resource is released while it is still waiting in the queue
var ErrAlreadyPending error = errors.New("resource is already pending release")

// ErrInvalidBufferingCount is returned when a queue is created or resized with fewer than one slot
var ErrInvalidBufferingCount error = errors.New("buffering count must be at least 1")
