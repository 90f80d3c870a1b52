package fetch

import "fmt"

// FetchError is a terminal fetch failure: a non-retryable status (404 and
// other 4xx except 429), a malformed URL, or an unresolvable host. The item
// fails immediately without consuming retry budget.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RetryExhaustedError reports that every retry of a transient failure
// (429, 5xx, timeout, connection reset) was consumed without success.
type RetryExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts exhausted: %v", e.URL, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }
