package cashctrl

import (
	"fmt"
	"strings"
	"time"
)

// StatusTimeout is the synthetic status a timed-out call is reported
// under, since no response ever arrived.
const StatusTimeout = 599

// TransportError is a non-2xx response (or a timeout, carrying the
// synthetic status). List and read calls may be retried by the caller;
// create/update/delete are never auto-retried.
type TransportError struct {
	Status  int
	Body    string
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return "request timed out"
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Body)
}

// RateLimitError is returned when the remote kept answering 429 through
// the whole retry budget.
type RateLimitError struct {
	Attempts int
	Wait     time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts (%s backoff each)", e.Attempts, e.Wait)
}

// FieldError is one entry of the envelope's errors list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RemoteError is a 2xx response whose envelope reports success=false.
type RemoteError struct {
	Message string
	Errors  []FieldError
}

func (e *RemoteError) Error() string {
	if len(e.Errors) == 0 {
		if e.Message != "" {
			return "remote reported failure: " + e.Message
		}
		return "remote reported failure"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Field != "" {
			parts = append(parts, fe.Field+": "+fe.Message)
		} else {
			parts = append(parts, fe.Message)
		}
	}
	return "remote rejected request: " + strings.Join(parts, "; ")
}
