package scan

import "fmt"

// MalformedRangeError is returned when a range bound is not a dotted quad.
type MalformedRangeError struct {
	Input  string
	Reason string
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed range '%s': %s", e.Input, e.Reason)
}

// ConfigurationError means the vendor reference table could not be used.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("vendor database '%s': %s", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
