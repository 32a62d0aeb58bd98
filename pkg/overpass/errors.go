package overpass

import "fmt"

// NetworkError reports a failed or non-success exchange with the Overpass API.
// StatusCode is 0 when no HTTP response was received.
type NetworkError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("overpass: request failed: %v", e.Err)
	}
	return fmt.Sprintf("overpass: api error: %s", e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a response body that is not a valid Overpass JSON payload.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("overpass: malformed response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
