package inflight

import "github.com/pkg/errors"

// ErrAllocationFailed matches every error returned while creating a buffered resource. The device error that
// caused it is still reachable with errors.Is.
var ErrAllocationFailed error = errors.New("failed to create buffered resource")

// ErrAlreadyMapped is returned from Map when the resource already has an active mapping
var ErrAlreadyMapped error = errors.New("resource is already mapped")

// ErrInvalidMapFlags is returned from Map when neither MapRead nor MapWrite is requested, or when
// a write mapping is requested from a resource whose contents live in a read-only host copy
var ErrInvalidMapFlags error = errors.New("invalid map flags")

// ErrNotHostAccessible is returned from Map when the resource has no host-visible memory to map
var ErrNotHostAccessible error = errors.New("resource is not host accessible")

// ErrMissingInitialData is returned when StorageDeviceLocalHostCopy is requested without initial data
var ErrMissingInitialData error = errors.New("host copy storage requires initial data")

// ErrFrameSkipped matches a failed wait or reset on a frame's completion fence. The frame should be skipped,
// but the manager remains usable.
var ErrFrameSkipped error = errors.New("frame skipped")

// ErrInvalidConfig is returned when a Config fails validation
var ErrInvalidConfig error = errors.New("invalid configuration")

// ErrUnsupportedFormat is returned when an image is created with a format whose texel size is unknown
var ErrUnsupportedFormat error = errors.New("unsupported image format")

// ErrNotCreated is returned when an operation is performed on a resource that was destroyed or never created
var ErrNotCreated error = errors.New("resource has not been created")
