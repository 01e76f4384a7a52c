package client

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by errors.Is against *APIError.
var (
	ErrUnauthorized    = errors.New("caller is not authorized")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyBound    = errors.New("identity already bound")
	ErrVerification    = errors.New("verification failed")
	ErrReplay          = errors.New("attestation uuid already used")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfRange      = errors.New("start index out of range")
	ErrUUIDRepeat      = errors.New("content uuid already exists")
	ErrUpstream        = errors.New("upstream collaborator failed")
)

var codeErrors = map[string]error{
	"unauthorized":       ErrUnauthorized,
	"not_found":          ErrNotFound,
	"uuid_not_exist":     ErrNotFound,
	"already_bound":      ErrAlreadyBound,
	"verification":       ErrVerification,
	"principal":          ErrVerification,
	"verify":             ErrVerification,
	"replay":             ErrReplay,
	"invalid_argument":   ErrInvalidArgument,
	"msg_decode":         ErrInvalidArgument,
	"sig_decode":         ErrInvalidArgument,
	"field_out_of_range": ErrOutOfRange,
	"uuid_repeat":        ErrUUIDRepeat,
	"upstream":           ErrUpstream,
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string // wire code, may be empty
	Kind    string // upstream failure kind, set with Code "upstream"
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("xid: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("xid: HTTP %d (%s): %s", e.Status, e.Code, e.Message)
}

// Is reports whether target is the sentinel for e's code. Responses without
// a code fall back to 401/403 and 404.
func (e *APIError) Is(target error) bool {
	if sentinel, ok := codeErrors[e.Code]; ok {
		return sentinel == target
	}
	switch e.Status {
	case 401, 403:
		return target == ErrUnauthorized
	case 404:
		return target == ErrNotFound
	}
	return false
}
