package buf

import "errors"

var (
	// ErrDevBusy is returned when attaching a device id that is already attached.
	ErrDevBusy = errors.New("device already attached")

	// ErrDevInUse is returned when detaching a device that still has
	// referenced or pinned buffers.
	ErrDevInUse = errors.New("device has buffers in use")

	ErrNoDev = errors.New("device not attached")
)
