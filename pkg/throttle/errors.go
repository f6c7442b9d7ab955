package throttle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOption is the sentinel wrapped by InvalidOptionError.
	ErrInvalidOption = errors.New("invalid option")

	// ErrMissingOption is the sentinel wrapped by MissingOptionError.
	ErrMissingOption = errors.New("missing required option")

	// ErrInvalidValue is the sentinel wrapped by InvalidValueError.
	ErrInvalidValue = errors.New("invalid option value")

	// ErrUnsupportedType is the sentinel wrapped by UnsupportedTypeError.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrClassExists is returned when a class name is defined twice.
	ErrClassExists = errors.New("class already defined")

	// ErrUnknownClass is returned when a parent class does not belong to the registry.
	ErrUnknownClass = errors.New("unknown class")
)

// InvalidOptionError reports configuration keys that are not recognized.
type InvalidOptionError struct {
	// Keys lists the unknown keys in sorted order.
	Keys []string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid option(s): %s", strings.Join(e.Keys, ", "))
}

func (e *InvalidOptionError) Unwrap() error {
	return ErrInvalidOption
}

// MissingOptionError reports required configuration keys that are absent.
type MissingOptionError struct {
	// Keys lists the missing keys.
	Keys []string
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("missing required option(s): %s", strings.Join(e.Keys, ", "))
}

func (e *MissingOptionError) Unwrap() error {
	return ErrMissingOption
}

// InvalidValueError reports a recognized key whose value cannot be used.
type InvalidValueError struct {
	Key    string
	Value  any
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %v for option %s: %s", e.Value, e.Key, e.Reason)
}

func (e *InvalidValueError) Unwrap() error {
	return ErrInvalidValue
}

// UnsupportedTypeError is returned when an interceptor is attached to a
// target that does not expose a connection entry point.
type UnsupportedTypeError struct {
	// Type is the dynamic type of the rejected target.
	Type string

	// Reason describes what is missing.
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("cannot throttle %s: %s", e.Type, e.Reason)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}
