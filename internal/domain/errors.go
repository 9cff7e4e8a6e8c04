package domain

import (
	"errors"
	"fmt"
)

// Operations return errors from this fixed taxonomy so callers can branch
// with errors.Is. The HTTP layer turns them into stable wire codes via
// ErrorCode; anything outside the taxonomy surfaces as INTERNAL.
var (
	ErrInvalidDuration         = errors.New("pricing: nights not offered by package")
	ErrGroupSizeOutOfRange     = errors.New("pricing: no tier covers the group size")
	ErrNoPricingForPeriod      = errors.New("pricing: no period covers the arrival date")
	ErrNoPricingForCombination = errors.New("pricing: no price entry for tier and nights")

	// ErrPriceOnRequest is a valid terminal outcome, not a failure: the package
	// publishes no fixed price for the combination, so the quote must be priced
	// manually. Linking and recalculation refuse it; resolution reports it.
	ErrPriceOnRequest = errors.New("pricing: price on request")

	ErrPackageNotFound = errors.New("package not found")
	ErrPackageInactive = errors.New("package not active")
	ErrQuoteNotFound   = errors.New("quote not found")
	ErrHistoryNotFound = errors.New("history version not found")

	// ErrVersionConflict reports a failed optimistic-concurrency write: the
	// entity changed since it was read. Always recoverable; re-fetch and retry.
	ErrVersionConflict = errors.New("version conflict")

	ErrUnauthorized = errors.New("actor not authorized")

	// ErrValidation marks malformed or inconsistent input. Wrap it with
	// NewValidationError so the detail travels with the sentinel.
	ErrValidation = errors.New("validation failed")
)

// NewValidationError returns an error matching ErrValidation with detail.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorCode maps an error to its stable wire code. Unknown errors map to
// INTERNAL so storage and driver detail never leaks past the API boundary.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrInvalidDuration):
		return "INVALID_DURATION"
	case errors.Is(err, ErrGroupSizeOutOfRange):
		return "GROUP_SIZE_OUT_OF_RANGE"
	case errors.Is(err, ErrNoPricingForPeriod):
		return "NO_PRICING_FOR_PERIOD"
	case errors.Is(err, ErrNoPricingForCombination):
		return "NO_PRICING_FOR_COMBINATION"
	case errors.Is(err, ErrPriceOnRequest):
		return "PRICE_ON_REQUEST"
	case errors.Is(err, ErrPackageNotFound):
		return "PACKAGE_NOT_FOUND"
	case errors.Is(err, ErrPackageInactive):
		return "PACKAGE_INACTIVE"
	case errors.Is(err, ErrQuoteNotFound):
		return "QUOTE_NOT_FOUND"
	case errors.Is(err, ErrHistoryNotFound):
		return "HISTORY_NOT_FOUND"
	case errors.Is(err, ErrVersionConflict):
		return "VERSION_CONFLICT"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	default:
		return "INTERNAL"
	}
}
