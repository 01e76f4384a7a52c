package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("caller is not authorized")
	ErrNotFound        = errors.New("identity not found")
	ErrAlreadyBound    = errors.New("identity already bound")
	ErrVerification    = errors.New("caller does not match pending ticket")
	ErrPrincipal       = fmt.Errorf("%w: pending ticket is not a well-formed principal", ErrVerification)
	ErrFieldOutOfRange = errors.New("field out of range")
	ErrUUIDRepeat      = errors.New("content uuid already exists")
	ErrUUIDNotExist    = errors.New("content uuid does not exist")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Registry error kinds as reported by the registry service.
const (
	KindConflict         = "conflict"
	KindNotFound         = "not_found"
	KindInvalidOperation = "invalid_operation"
	KindInvalidPlatform  = "invalid_platform"
	KindNotOwner         = "not_owner"
	KindTransport        = "transport"
)

// UpstreamError is a registry or verifier failure that has no local
// equivalent. Kind is one of the Kind constants.
type UpstreamError struct {
	Op   string
	Kind string
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upstream %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("upstream %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
