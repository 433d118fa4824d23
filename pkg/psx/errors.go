package psx

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResponse indicates no pad answered identification.
	ErrNoResponse = errors.New("no peripheral responded")
	// ErrUnsupportedDevice indicates the identification code is unknown.
	ErrUnsupportedDevice = errors.New("unsupported device")
	// ErrTransientFrame indicates a single frame failed.
	ErrTransientFrame = errors.New("frame failed")
	// ErrLinkLost indicates consecutive frame failures crossed the threshold.
	ErrLinkLost = errors.New("link lost")
	// ErrConfigurationTimeout indicates the extended mode sequence ran
	// over its time budget.
	ErrConfigurationTimeout = errors.New("configuration timeout")
	// ErrConfigRejected indicates the pad did not enter configuration mode.
	ErrConfigRejected = errors.New("configuration rejected")
	// ErrSessionClosed indicates the session has been shut down.
	ErrSessionClosed = errors.New("session closed")
	// ErrPortInUse indicates the port is owned by another session.
	ErrPortInUse = errors.New("port in use")
	// ErrPortNotComparable indicates the port can't be told apart from
	// other ports, e.g. a struct value holding a slice.
	ErrPortNotComparable = errors.New("port not comparable")
	// ErrPollerLeaked indicates the poller did not stop in time.
	ErrPollerLeaked = errors.New("poller did not stop")
)

// FrameError reports a failed frame.
type FrameError struct {
	Command byte
	Status  byte
}

// Error implements error.
func (e *FrameError) Error() string {
	return fmt.Sprintf("frame 0x%02x: status 0x%02x", e.Command, e.Status)
}

// Is matches ErrTransientFrame.
func (e *FrameError) Is(target error) bool {
	return target == ErrTransientFrame
}

// UnsupportedDeviceError carries the unknown identification code.
type UnsupportedDeviceError struct {
	Code byte
}

// Error implements error.
func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("unsupported device: id 0x%02x", e.Code)
}

// Is matches ErrUnsupportedDevice.
func (e *UnsupportedDeviceError) Is(target error) bool {
	return target == ErrUnsupportedDevice
}
