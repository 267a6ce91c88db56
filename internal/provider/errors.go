package provider

import "fmt"

// UnrecognizedModeError reports an openid.mode the provider does not
// implement. The entry point turns it into a direct error response.
type UnrecognizedModeError struct {
	Mode string
}

func (e *UnrecognizedModeError) Error() string {
	return fmt.Sprintf("unrecognized openid.mode %q", e.Mode)
}
