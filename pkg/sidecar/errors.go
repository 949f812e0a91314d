package sidecar

import "fmt"

// Error is implemented by all sidecar client errors. UserError returns the
// text shown to the notebook user, which is intentionally less detailed
// than Error.
type Error interface {
	error
	UserError() string
}

// APIError is a non-200 response from the sidecar.
type APIError struct {
	StatusCode int
	Body       string
	Operation  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("received %d status from planar-ally for %s", e.StatusCode, e.Operation)
}

// UserError returns the support-facing message for the user.
func (e *APIError) UserError() string {
	return fmt.Sprintf(
		"There was an error while doing the %s operation. Contact support with error code %d.",
		e.Operation, e.StatusCode,
	)
}

// TimeoutError indicates a sidecar request did not complete in time.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting on operation: %s", e.Operation)
}

// UserError returns the support-facing message for the user.
func (e *TimeoutError) UserError() string {
	return fmt.Sprintf("Timed out waiting on operation: %s", e.Operation)
}

// BadResponseError indicates the sidecar returned a 200 whose body could
// not be parsed as the expected JSON object.
type BadResponseError struct {
	cause error
}

func (e *BadResponseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("unable to parse response from planar-ally: %v", e.cause)
	}
	return "unable to parse response from planar-ally"
}

// UserError returns the support-facing message for the user.
func (*BadResponseError) UserError() string {
	return "Unable to parse response from remote service, contact support."
}

func (e *BadResponseError) Unwrap() error {
	return e.cause
}
