package adbpg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alibabacloud-go/tea/tea"
)

var (
	// ErrInvalidArgument marks a malformed structured parameter: bad JSON,
	// wrong list arity, non-integer values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFileNotFound is returned when a local file path given to an upload
	// or query does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrTimeout is returned when job polling exceeds its budget.
	ErrTimeout = errors.New("timeout")
)

// invalidArgf returns an error wrapping ErrInvalidArgument.
func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// RemoteError is any failure surfaced by the remote service or its transport.
type RemoteError struct {
	// Action is the RPC action that failed (e.g. "QueryContent").
	Action string
	// Code is the service error code, if the service returned one.
	Code string
	// Message is the service error message.
	Message string
	// StatusCode is the HTTP status code, zero for transport failures.
	StatusCode int
	// Err is the underlying SDK or transport error.
	Err error
}

// Error keeps the SDK text intact so callers can match on it.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("adbpg: %s: %v", e.Action, e.Err)
}

// Unwrap returns the underlying SDK error.
func (e *RemoteError) Unwrap() error { return e.Err }

// newRemoteError wraps err, lifting code/message/status from *tea.SDKError.
func newRemoteError(action string, err error) *RemoteError {
	re := &RemoteError{Action: action, Err: err}
	var sdkErr *tea.SDKError
	if errors.As(err, &sdkErr) {
		re.Code = tea.StringValue(sdkErr.Code)
		re.Message = tea.StringValue(sdkErr.Message)
		re.StatusCode = tea.IntValue(sdkErr.StatusCode)
	}
	return re
}

// IsNotFound reports whether err is a NotFound-flavored remote failure.
// The service encodes this only in the error text (e.g. "Collection.NotFound").
func IsNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NotFound")
}

// JobFailedError is returned when a remote job completed with a non-empty
// error field.
type JobFailedError struct {
	// JobID is the service-assigned job identifier.
	JobID string
	// Reason is the job's Error field.
	Reason string
	// Response is the final status read.
	Response *Response
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("adbpg: job %s failed with error: %s", e.JobID, e.Reason)
}

// CredentialsError reports that a credential validation call failed.
// The underlying remote error text is preserved.
type CredentialsError struct {
	Err error
}

func (e *CredentialsError) Error() string {
	return "credentials invalid: " + e.Err.Error()
}

// Unwrap returns the validation failure.
func (e *CredentialsError) Unwrap() error { return e.Err }
