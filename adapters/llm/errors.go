package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from a provider
type APIError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s http %d (%s): %s", e.Provider, e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Message)
}

// AuthError indicates a rejected or missing API key (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

func (e *AuthError) Unwrap() error { return e.APIError }

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

func (e *RateLimitError) Unwrap() error { return e.APIError }

// BadRequestError indicates the provider refused the request shape.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

func (e *BadRequestError) Unwrap() error { return e.APIError }

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

func (e *ServerError) Unwrap() error { return e.APIError }

// EmptyResponseError is returned when a 2xx reply carries no text,
// typically because generation was blocked or cut off.
type EmptyResponseError struct {
	Provider     string
	FinishReason string
}

func (e *EmptyResponseError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("%s returned no text (finish reason %s)", e.Provider, e.FinishReason)
	}
	return fmt.Sprintf("%s returned no text", e.Provider)
}

// classifyAPIError builds a typed error from a failed response. Both
// supported providers wrap details in {"error": {"message", "status"|"code"}}.
func classifyAPIError(provider string, resp *http.Response, body []byte) error {
	apiErr := &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if msg := parsed.Get("error.message"); msg.Exists() {
			apiErr.Message = msg.String()
		}
		if status := parsed.Get("error.status"); status.Exists() {
			apiErr.Status = status.String()
		} else if code := parsed.Get("error.code"); code.Exists() {
			apiErr.Status = code.String()
		}
	}
	if len(apiErr.Message) > 500 {
		apiErr.Message = apiErr.Message[:500]
	}

	sc := resp.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		rl := &RateLimitError{APIError: apiErr}
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				rl.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return rl
	case sc >= 500:
		return &ServerError{APIError: apiErr}
	case sc >= 400:
		return &BadRequestError{APIError: apiErr}
	}
	return apiErr
}
