package orchestrator

import (
	"github.com/overhuman/orchestrator/internal/orcherr"
)

// ErrorKind names one of the error taxonomy buckets, for the control
// surface's {error, kind, details} result shape.
type ErrorKind string

const (
	KindConstraintViolation ErrorKind = "ConstraintViolation"
	KindBudgetBlock         ErrorKind = "BudgetBlock"
	KindRateLimited         ErrorKind = "RateLimited"
	KindProviderError       ErrorKind = "ProviderError"
	KindTimeoutError        ErrorKind = "TimeoutError"
	KindCatalogMiss         ErrorKind = "CatalogMiss"
	KindInvariantViolation  ErrorKind = "InvariantViolation"
	KindInternal            ErrorKind = "Internal"
)

// ClassifyError maps an error returned by Route/RunTask/control methods to
// its taxonomy kind and exit code: 1 for constraint violations and budget
// blocks, 2 for internal errors.
func ClassifyError(err error) (kind ErrorKind, exitCode int) {
	switch err.(type) {
	case *orcherr.ConstraintViolation:
		return KindConstraintViolation, 1
	case *orcherr.BudgetBlock:
		return KindBudgetBlock, 1
	case *orcherr.RateLimited:
		return KindRateLimited, 2
	case *orcherr.ProviderError:
		return KindProviderError, 2
	case *orcherr.TimeoutError:
		return KindTimeoutError, 2
	case *orcherr.CatalogMiss:
		return KindCatalogMiss, 2
	case *orcherr.InvariantViolation:
		return KindInvariantViolation, 2
	default:
		return KindInternal, 2
	}
}
