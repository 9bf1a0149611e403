package fwd

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownInterface    = errors.New("unknown interface")
	ErrIncompleteTarget    = errors.New("incomplete DNAT target, both IP and MAC address must be provided")
	ErrMissingLocalAddress = errors.New("missing local address, interface has no IPv4 address")
	ErrInvalidSetting      = errors.New("invalid setting")
	ErrAlreadyAttached     = errors.New("interface already has a frame interceptor attached")
	ErrAddressChanged      = errors.New("interface hardware address changed between resolve and attach")
)

// ConfigurationError is returned by setup only. Interface is empty for engine wide settings.
type ConfigurationError struct {
	Interface string
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e.Interface == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error on %s: %v", e.Interface, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// AttachError - the host refused to attach the forwarder to an interface.
type AttachError struct {
	Interface string
	Err       error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("failed to attach to %s: %v", e.Interface, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}
