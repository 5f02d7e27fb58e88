package authclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is returned by login when the server rejects the identifier/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidationFailed reports field-level validation errors, either local or server supplied.
	ErrValidationFailed = errors.New("validation failed")
	// ErrUnauthorized means the credential is invalid or expired (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the session is valid but lacks privilege (HTTP 403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is HTTP 404.
	ErrNotFound = errors.New("not found")
	// ErrClientError covers every other 4xx response.
	ErrClientError = errors.New("client error")
	// ErrServerError covers 5xx responses.
	ErrServerError = errors.New("server error")
	// ErrNetworkUnreachable means no response was received at all.
	ErrNetworkUnreachable = errors.New("network unreachable")
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrClientNotReady is returned by operations invoked on a nil or unbuilt client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrSessionChanged is returned when a login response arrives after the
	// session it was started in has ended.
	ErrSessionChanged = errors.New("session changed while request was in flight")
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// ErrorKind is the classification assigned to a failed call.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindInvalidCredentials
	KindValidationFailed
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindClientError
	KindServerError
	KindNetworkUnreachable
	KindMalformedResponse
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindInvalidCredentials: "invalid_credentials",
	KindValidationFailed:   "validation_failed",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindClientError:        "client_error",
	KindServerError:        "server_error",
	KindNetworkUnreachable: "network_unreachable",
	KindMalformedResponse:  "malformed_response",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindValidationFailed:
		return ErrValidationFailed
	case KindUnauthorized:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	case KindClientError:
		return ErrClientError
	case KindServerError:
		return ErrServerError
	case KindNetworkUnreachable:
		return ErrNetworkUnreachable
	case KindMalformedResponse:
		return ErrMalformedResponse
	}
	return nil
}

// APIError is a classified failure. It matches the sentinel of its kind with
// errors.Is, so callers can write errors.Is(err, ErrForbidden).
type APIError struct {
	Kind        ErrorKind
	Status      int
	Message     string
	FieldErrors map[string]string
	RequestID   string
	Err         error

	// serverMessage is set when Message came from the response body.
	serverMessage bool
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.FieldErrors) > 0 {
		fields := make([]string, 0, len(e.FieldErrors))
		for f := range e.FieldErrors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		b.WriteString(" [")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f)
			b.WriteString(": ")
			b.WriteString(e.FieldErrors[f])
		}
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindUnknown when err is not
// (and does not wrap) an *APIError.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// classifyStatus maps a non-2xx HTTP status to an error kind. Stray 1xx/3xx
// codes that reach here are reported as client errors.
func classifyStatus(status int, fieldErrors map[string]string) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest && len(fieldErrors) > 0:
		return KindValidationFailed
	case status >= 400 && status < 500:
		return KindClientError
	case status >= 500:
		return KindServerError
	}
	return KindClientError
}
