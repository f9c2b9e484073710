package models

import "errors"

// Error taxonomy per spec.md §7. Components return these sentinels (wrapped
// with context via fmt.Errorf("...: %w", ...)) so callers can classify with
// errors.Is without string-matching.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate")
	ErrAuth            = errors.New("auth error")
	ErrVersionConflict = errors.New("version conflict")
	ErrAmbiguousMatch  = errors.New("ambiguous match")
	ErrToolError       = errors.New("tool error")
	ErrLLMError        = errors.New("llm error")
	ErrTimeout         = errors.New("timeout")
	ErrInternal        = errors.New("internal error")
)
