package vulkan

import "github.com/pkg/errors"

// ErrNoCompatibleMemoryType is returned when no device memory type satisfies both a resource's memory
// type bitmask and the requested property flags
var ErrNoCompatibleMemoryType error = errors.New("no compatible memory type")

// ErrTransferInProgress is returned from TransferChannel.Begin when the previous batch was never ended
var ErrTransferInProgress error = errors.New("a transfer batch is already being recorded")

// ErrTransferNotStarted is returned from TransferChannel.End when Begin was not called first
var ErrTransferNotStarted error = errors.New("no transfer batch is being recorded")
