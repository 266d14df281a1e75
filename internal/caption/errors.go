package caption

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/materialize"
	"github.com/lehigh-university-libraries/describer/internal/providers"
)

// Class is the closed set of failure categories for a provider call
type Class string

const (
	ClassUnknown  Class = "unknown"
	ClassAuth     Class = "auth"
	ClassNetwork  Class = "network"
	ClassSecurity Class = "security"
)

// ProviderError records a failed provider call and how it was classified
type ProviderError struct {
	Provider string
	Class    Class
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Provider, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(provider string, err error) *ProviderError {
	pe := &ProviderError{
		Provider: provider,
		Class:    Classify(err),
		Err:      err,
	}
	var statusErr *providers.StatusError
	if errors.As(err, &statusErr) {
		pe.Status = statusErr.StatusCode
	}
	return pe
}

var securityMarkers = []string{"cors", "tainted", "security", "cross-origin"}

// Classify maps an error from any stage of caption generation to a Class.
// Typed errors are checked first; message text is only consulted for foreign
// errors that carry no type information.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	if errors.Is(err, materialize.ErrCrossOrigin) {
		return ClassSecurity
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.Class != ClassUnknown {
		return pe.Class
	}

	if errors.Is(err, providers.ErrNoCredentials) {
		return ClassAuth
	}

	var statusErr *providers.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return ClassAuth
		case statusErr.StatusCode == http.StatusTooManyRequests, statusErr.StatusCode >= 500:
			return ClassNetwork
		}
		return ClassUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassNetwork
	}

	// *url.Error implements net.Error
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range securityMarkers {
		if strings.Contains(msg, marker) {
			return ClassSecurity
		}
	}

	return ClassUnknown
}
