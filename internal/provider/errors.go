package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// InvokeError is the host's coarse classification of a failed model call.
type InvokeError string

const (
	InvokeConnection        InvokeError = "connection"
	InvokeServerUnavailable InvokeError = "server_unavailable"
	InvokeRateLimit         InvokeError = "rate_limit"
	InvokeAuthorization     InvokeError = "authorization"
	InvokeBadRequest        InvokeError = "bad_request"
	// InvokeUnknown is returned for anything not recognized.
	InvokeUnknown InvokeError = "unknown"
)

// authCodes are service error code fragments that mean bad credentials.
var authCodes = []string{"InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden", "NoPermission", "InvalidAccount"}

// ClassifyError maps err to an InvokeError. The remote error's status and
// code decide; errors without either are unknown.
func ClassifyError(err error) InvokeError {
	if err == nil {
		return ""
	}
	if errors.Is(err, adbpg.ErrInvalidArgument) || errors.Is(err, adbpg.ErrFileNotFound) {
		return InvokeBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return InvokeConnection
	}

	var re *adbpg.RemoteError
	if !errors.As(err, &re) {
		return InvokeUnknown
	}
	if strings.Contains(re.Code, "Throttling") {
		return InvokeRateLimit
	}
	for _, c := range authCodes {
		if strings.Contains(re.Code, c) {
			return InvokeAuthorization
		}
	}
	switch s := re.StatusCode; {
	case s == 0:
		return InvokeConnection
	case s == 429:
		return InvokeRateLimit
	case s == 401 || s == 403:
		return InvokeAuthorization
	case s >= 500:
		return InvokeServerUnavailable
	case s >= 400:
		return InvokeBadRequest
	}
	return InvokeUnknown
}
