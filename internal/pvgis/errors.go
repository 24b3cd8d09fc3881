package pvgis

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/iwvelando/solar-estimator/pkg/constants"
)

// Errors callers branch on. ErrUpstream is matched by *UpstreamError.
var (
	ErrInvalidQuery      = errors.New("invalid yield query")
	ErrUpstream          = errors.New("yield provider returned an error")
	ErrUnreachable       = errors.New("yield provider unreachable")
	ErrMalformedResponse = errors.New("malformed yield response")
)

// UpstreamError carries a non-2xx provider reply. Body is truncated so large
// HTML error pages do not end up in logs or API responses.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func newUpstreamError(status int, body []byte) *UpstreamError {
	return &UpstreamError{StatusCode: status, Body: truncate(string(body), constants.UpstreamErrorBodyLimit)}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("yield provider returned status %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrUpstream) match.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
