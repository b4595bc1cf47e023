// Package sdkerror defines CoreSDKError, the typed error every component of
// the card payments client reports to its observers.
// Errors that are not a *CoreSDKError are considered unrecognized and are
// normalized by the caller before they leave the client.
package sdkerror

import (
	"errors"
	"fmt"
)

// Error domains, one per component that can produce a CoreSDKError.
const (
	DomainAPIClient     = "APIClientErrorDomain"
	DomainGraphQLClient = "GraphQLClientErrorDomain"
	DomainCardClient    = "CardClientErrorDomain"
)

// CoreSDKError is a classified error carrying a numeric code scoped to a domain.
type CoreSDKError struct {
	Code             int    // Code is unique within Domain
	Domain           string // Domain names the component that raised the error
	ErrorDescription string // Human readable description, safe to surface to the host
	Err              error  // Underlying cause, if any
}

// New returns a CoreSDKError without an underlying cause.
func New(code int, domain, description string) *CoreSDKError {
	return &CoreSDKError{Code: code, Domain: domain, ErrorDescription: description}
}

// Wrap returns a CoreSDKError carrying err as its cause.
func Wrap(code int, domain, description string, err error) *CoreSDKError {
	return &CoreSDKError{Code: code, Domain: domain, ErrorDescription: description, Err: err}
}

func (e *CoreSDKError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Domain, e.Code, e.ErrorDescription, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Domain, e.Code, e.ErrorDescription)
}

// CodeString renders the domain and code as "Domain:Code", the key used in summaries.
func (e *CoreSDKError) CodeString() string {
	return fmt.Sprintf("%s:%d", e.Domain, e.Code)
}

func (e *CoreSDKError) Unwrap() error {
	return e.Err
}

// Is matches another CoreSDKError with the same domain and code, so callers can
// compare against the sentinel-like values returned by constructors.
func (e *CoreSDKError) Is(target error) bool {
	var t *CoreSDKError
	if !errors.As(target, &t) {
		return false
	}
	return t.Domain == e.Domain && t.Code == e.Code
}

// As reports whether err is, or wraps, a CoreSDKError and returns it.
func As(err error) (*CoreSDKError, bool) {
	var sdkErr *CoreSDKError
	if errors.As(err, &sdkErr) {
		return sdkErr, true
	}
	return nil, false
}
