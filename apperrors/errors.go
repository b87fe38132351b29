package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error. Callers branch on the kind, never on the message.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindExhausted         Kind = "exhausted"
	KindPolicyDenied      Kind = "policy_denied"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidInput      Kind = "invalid_input"
	KindInternal          Kind = "internal"
)

// Policy denial reasons.
const (
	ReasonTierIneligible      = "tier_ineligible"
	ReasonInvalidDuration     = "invalid_duration"
	ReasonDurationExceeded    = "duration_exceeded"
	ReasonActiveLimitExceeded = "active_limit_exceeded"
	ReasonInsufficientFunds   = "insufficient_funds"
)

// Error represents an application error
type Error struct {
	Kind    Kind             `json:"kind"`
	Code    int              `json:"code"`
	Reason  string           `json:"reason,omitempty"`
	Message string           `json:"message"`
	Details map[string]int64 `json:"details,omitempty"`
	Err     error            `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, and on reason when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Detail returns a numeric detail, or 0 when absent.
func (e *Error) Detail(key string) int64 {
	if e.Details == nil {
		return 0
	}
	return e.Details[key]
}

// New creates a new Error
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    statusFor(kind),
		Message: message,
		Err:     err,
	}
}

func statusFor(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindExhausted, KindConflict:
		return http.StatusConflict
	case KindPolicyDenied:
		return http.StatusForbidden
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindInvalidTransition, KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrExhausted         = &Error{Kind: KindExhausted}
	ErrPolicyDenied      = &Error{Kind: KindPolicyDenied}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
)

// NotFound reports a missing book, customer or reservation.
func NotFound(entity string) *Error {
	e := New(KindNotFound, entity+" not found", nil)
	e.Reason = entity + "_not_found"
	return e
}

// Exhausted reports that no unit of the book is available.
func Exhausted(bookID uint) *Error {
	e := New(KindExhausted, "no units available", nil)
	e.Details = map[string]int64{"book_id": int64(bookID)}
	return e
}

// Conflict reports lock contention or a serialization failure. Retryable.
func Conflict(err error) *Error {
	return New(KindConflict, "concurrent update, please retry", err)
}

// PolicyDenied reports a subscription rule violation.
func PolicyDenied(reason, message string, details map[string]int64) *Error {
	e := New(KindPolicyDenied, message, nil)
	e.Reason = reason
	e.Details = details
	return e
}

// InsufficientFunds carries the shortfall the caller needs to top up.
func InsufficientFunds(cost, balance int64) *Error {
	e := New(KindInsufficientFunds, "not enough wallet balance", nil)
	e.Reason = ReasonInsufficientFunds
	e.Details = map[string]int64{
		"cost":      cost,
		"balance":   balance,
		"shortfall": cost - balance,
	}
	return e
}

// InvalidTransition reports an unsupported state change such as an unknown upgrade path.
func InvalidTransition(from, to string) *Error {
	e := New(KindInvalidTransition, fmt.Sprintf("cannot move from %s to %s", from, to), nil)
	e.Reason = "invalid_" + from + "_to_" + to
	return e
}

// InvalidInput reports a rejected constructor or request value.
func InvalidInput(message string, err error) *Error {
	return New(KindInvalidInput, message, err)
}

// Internal wraps an unexpected infrastructure failure.
func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Respond writes err as JSON on the gin context.
func Respond(c *gin.Context, err error) {
	appErr, ok := As(err)
	if !ok {
		appErr = Internal("Internal server error", err)
	}
	body := gin.H{"error": appErr.Message, "kind": appErr.Kind}
	if appErr.Reason != "" {
		body["reason"] = appErr.Reason
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.JSON(appErr.Code, body)
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
			c.Abort()
		}
	}
}
