package inflight

import (
	"github.com/vkngwrapper/core/v3/common"
)

// StoragePolicy decides where each physical copy of a buffered resource lives and how the CPU reaches it
type StoragePolicy int32

const (
	// StorageDeviceLocal places every copy in device-local memory. Initial data is staged through a
	// temporary host-visible buffer, after which the CPU cannot reach the contents.
	StorageDeviceLocal StoragePolicy = iota
	// StorageHostVisible keeps every copy writable from the CPU. Buffers live directly in host-visible
	// memory, while images keep a host-visible staging buffer per copy that is copied to the image on Unmap.
	StorageHostVisible
	// StorageDeviceLocalHostCopy behaves like StorageDeviceLocal but retains a read-only copy of the
	// initial data in host memory
	StorageDeviceLocalHostCopy
)

func (p StoragePolicy) String() string {
	switch p {
	case StorageDeviceLocal:
		return "StorageDeviceLocal"
	case StorageHostVisible:
		return "StorageHostVisible"
	case StorageDeviceLocalHostCopy:
		return "StorageDeviceLocalHostCopy"
	}

	return "StorageUnknown"
}

// MapFlags indicate what the caller intends to do with a mapping
type MapFlags int32

var mapFlagsMapping = common.NewFlagStringMapping[MapFlags]()

func (f MapFlags) Register(str string) {
	mapFlagsMapping.Register(f, str)
}
func (f MapFlags) String() string {
	return mapFlagsMapping.FlagsToString(f)
}

const (
	MapNone  MapFlags = 0
	MapRead  MapFlags = 1 << 0
	MapWrite MapFlags = 1 << 1
)

// CreateFlags indicate specific manager behaviors to activate or deactivate
type CreateFlags int32

var createFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// CreateExternallySynchronized ensures that this manager and all objects created from it
	// will not be synchronized internally. The consumer must guarantee they are used from only one
	// thread at a time or are synchronized by some other mechanism.
	CreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	MapRead.Register("MapRead")
	MapWrite.Register("MapWrite")

	CreateExternallySynchronized.Register("CreateExternallySynchronized")
}
