package core

import (
	"errors"
	"fmt"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrDeviceLost       = errors.New("device lost")
	ErrInvalidHandle    = errors.New("invalid handle")
	ErrOutOfMemory      = errors.New("out of memory")
	ErrUnsupported      = errors.New("unsupported")
	ErrNotInitialized   = errors.New("not initialized")
	ErrUnknown          = errors.New("unknown")
)

// ErrorKind is the outcome class of a native call once it crossed into Go.
type ErrorKind uint8

const (
	KindOk ErrorKind = iota
	// KindTransient covers failures local to one resource or one item.
	KindTransient
	// KindDeviceLost is terminal for the device; only the host can recover.
	KindDeviceLost
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindTransient:
		return "transient"
	case KindDeviceLost:
		return "device-lost"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error carries the classified kind and the raw native code of a failed call.
type Error struct {
	Kind ErrorKind
	Op   string
	Code int32
	Err  error
}

func NewError(kind ErrorKind, op string, code int32, err error) *Error {
	if err == nil {
		switch kind {
		case KindDeviceLost:
			err = ErrDeviceLost
		default:
			err = ErrUnknown
		}
	}
	return &Error{Kind: kind, Op: op, Code: code, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (kind=%s code=0x%08x)", e.Op, e.Err, e.Kind, uint32(e.Code))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDeviceLost) match any device-lost error, whatever
// sentinel was wrapped.
func (e *Error) Is(target error) bool {
	return target == ErrDeviceLost && e.Kind == KindDeviceLost
}

// KindOf extracts the ErrorKind of err. Unclassified errors are transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindOk
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrDeviceLost) {
		return KindDeviceLost
	}
	return KindTransient
}

func IsDeviceLost(err error) bool {
	return KindOf(err) == KindDeviceLost
}
