package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for consistent error handling across the BFA.

// ErrValidation indicates malformed local input, caught before any network call.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates the backend answered 404 for a resource.
type ErrNotFound struct {
	Resource string
	ID       string
	Detail   string // backend "detail" field, when present
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUpstream indicates any other non-2xx answer from the backend.
type ErrUpstream struct {
	Service string
	Status  int
	Detail  string
}

func (e *ErrUpstream) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error [%s] status %d: %s", e.Service, e.Status, e.Detail)
	}
	return fmt.Sprintf("backend error [%s] status %d", e.Service, e.Status)
}

// Unauthorized reports whether the backend rejected the credential.
func (e *ErrUpstream) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// ErrTransport indicates the request never produced a response (network failure,
// cancelled context, undecodable body).
type ErrTransport struct {
	Service string
	Err     error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("transport error [%s]: %v", e.Service, e.Err)
}

func (e *ErrTransport) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrBusy indicates the action is still running its previous request.
type ErrBusy struct {
	Action string
}

func (e *ErrBusy) Error() string {
	return fmt.Sprintf("action already in progress: %s", e.Action)
}

// UserMessage returns the text shown to the user for err: the backend detail when the
// backend sent one, the validation message for local errors, else fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var validation *ErrValidation
	var notFound *ErrNotFound
	var upstream *ErrUpstream
	var busy *ErrBusy

	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &notFound):
		if notFound.Detail != "" {
			return notFound.Detail
		}
	case errors.As(err, &upstream):
		if upstream.Detail != "" {
			return upstream.Detail
		}
	case errors.As(err, &busy):
		return "Aguarde a conclusão da operação em andamento"
	}
	return fallback
}
