package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ProviderError is returned for any non-2xx response. Its message carries the
// response body so API-level detail reaches the caller.
type ProviderError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("provider error: %d %q %s", e.StatusCode, e.Status, e.Body)
}

// statusText extracts the reason phrase from a status line such as
// "404 Not Found".
func statusText(statusCode int, status string) string {
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(status), strconv.Itoa(statusCode)))
	if text == "" {
		return http.StatusText(statusCode)
	}
	return text
}
