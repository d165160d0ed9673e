package domain

import (
	"errors"
	"fmt"

	dErrors "leitstand/pkg/domain-errors"
)

// ErrInvalidDomain matches every *DomainError under errors.Is.
var ErrInvalidDomain = errors.New("invalid domain")

// DomainError rejects a domain at any stage between the raw string and the
// resolved path: grammar, filename derivation or containment.
type DomainError struct {
	// Input is the string as the caller supplied it, before trimming or
	// case folding.
	Input  string
	Reason string
}

// NewDomainError builds a rejection for input.
func NewDomainError(input, reason string) *DomainError {
	return &DomainError{Input: input, Reason: reason}
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid domain %q: %s", e.Input, e.Reason)
}

// Unwrap exposes the rejection as a coded error so the transport layer can
// map it with dErrors.HasCode.
func (e *DomainError) Unwrap() error {
	return dErrors.New(dErrors.CodeInvalidDomain, e.Reason)
}

func (e *DomainError) Is(target error) bool {
	return target == ErrInvalidDomain
}
