package bili

import "fmt"

// UpstreamError is returned once every attempt failed on transport, status
// or schema grounds. Err is the cause of the final attempt.
type UpstreamError struct {
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("bili status fetch failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// APIError is a well-formed response carrying a non-zero code. It is never
// retried.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bili api returned code %d: %s", e.Code, e.Message)
}
