package gpu

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/rendercore/engine/core"
)

// Code is the native result of a device call, translated by the concrete
// device from its own result type.
type Code int32

const (
	OK Code = iota
	// WasStillDrawing is returned by non-blocking polls whose data is not ready.
	WasStillDrawing
	// OutOfDate means the swap chain no longer matches its surface.
	OutOfDate
	DeviceRemoved
	DeviceHung
	DeviceReset
	DriverInternalError
	NotCurrentlyAvailable
	OutOfMemory
	InvalidArg
	Unsupported
	Unknown
)

var codeNames = [...]string{
	OK:                    "OK",
	WasStillDrawing:       "WAS_STILL_DRAWING",
	OutOfDate:             "OUT_OF_DATE",
	DeviceRemoved:         "DEVICE_REMOVED",
	DeviceHung:            "DEVICE_HUNG",
	DeviceReset:           "DEVICE_RESET",
	DriverInternalError:   "DRIVER_INTERNAL_ERROR",
	NotCurrentlyAvailable: "NOT_CURRENTLY_AVAILABLE",
	OutOfMemory:           "OUT_OF_MEMORY",
	InvalidArg:            "INVALID_ARG",
	Unsupported:           "UNSUPPORTED",
	Unknown:               "UNKNOWN",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", int32(c))
}

// Classify maps a native code onto the error taxonomy. The device-loss set is
// fixed: removed, hung, reset, driver internal error and not currently
// available.
func Classify(c Code) core.ErrorKind {
	switch c {
	case OK:
		return core.KindOk
	case WasStillDrawing, OutOfDate:
		return core.KindTransient
	case DeviceRemoved, DeviceHung, DeviceReset, DriverInternalError, NotCurrentlyAvailable:
		return core.KindDeviceLost
	}
	return core.KindFatal
}

func (c Code) IsDeviceLost() bool {
	return Classify(c) == core.KindDeviceLost
}

// Check converts c into an error tagged with op, or nil for OK.
func Check(op string, c Code) error {
	if c == OK {
		return nil
	}
	var sentinel error
	switch c {
	case OutOfMemory:
		sentinel = core.ErrOutOfMemory
	case Unsupported:
		sentinel = core.ErrUnsupported
	case InvalidArg:
		sentinel = core.ErrInvalidHandle
	case DeviceRemoved, DeviceHung, DeviceReset, DriverInternalError, NotCurrentlyAvailable:
		sentinel = core.ErrDeviceLost
	default:
		sentinel = fmt.Errorf("%w: %s", core.ErrUnknown, c)
	}
	return core.NewError(Classify(c), op, int32(c), sentinel)
}

// CodeOf recovers the native code carried by an error produced by Check.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *core.Error
	if errors.As(err, &e) {
		return Code(e.Code)
	}
	return Unknown
}
