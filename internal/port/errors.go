package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrEmptyInput      = errors.New("empty input")
	ErrInputTooLong    = errors.New("input too long")
	ErrUnsafeInput     = errors.New("unsafe input")
	ErrRetrieval       = errors.New("retrieval failed")
	ErrGeneration      = errors.New("generation failed")
	ErrReflection      = errors.New("reflection failed")
	ErrRoleNotFound    = errors.New("role not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrInvalidDocument = errors.New("invalid document")
	ErrInvalidRecord   = errors.New("invalid progress record")
)
