package platform

import (
	"fmt"
	"time"
)

// ThrottleError — платформа ответила 429 и сообщила, когда приходить.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// APIError — любой другой не-2xx ответ платформы.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform: status %d code %d: %s", e.Status, e.Code, e.Message)
}
