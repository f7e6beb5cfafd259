package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the lifecycle engine and the HTTP API.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeNotTicketChannel    = "NOT_TICKET_CHANNEL"
	CodeDuplicateOpenTicket = "DUPLICATE_OPEN_TICKET"
	CodeAlreadyClosed       = "ALREADY_CLOSED"
	CodeDuplicateRating     = "DUPLICATE_RATING"
	CodeInvalidRating       = "INVALID_RATING"
	CodeProvisioningFailed  = "PROVISIONING_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewNotTicketChannel reports that a channel is not bound to any ticket.
func NewNotTicketChannel(channelID string) error {
	return NewDomainError(CodeNotTicketChannel, "channel is not a ticket channel", http.StatusNotFound,
		map[string]any{"channel_id": channelID})
}

// NewDuplicateOpenTicket carries the channel of the ticket the user already has open.
func NewDuplicateOpenTicket(ticketID, channelID string) error {
	return NewDomainError(CodeDuplicateOpenTicket, "user already has an open ticket", http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "channel_id": channelID})
}

func NewAlreadyClosed(ticketID string) error {
	return NewDomainError(CodeAlreadyClosed, "ticket already closed", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewDuplicateRating(ticketID string) error {
	return NewDomainError(CodeDuplicateRating, "ticket already rated", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewInvalidRating(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidRating, message, http.StatusBadRequest, details)
}

// NewProvisioningFailure wraps a chat-platform channel creation failure.
func NewProvisioningFailure(err error) error {
	return &DomainError{
		Code:       CodeProvisioningFailed,
		Message:    "ticket channel provisioning failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// DetailString returns a string detail of a DomainError, or "".
func DetailString(err error, key string) string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Details == nil {
		return ""
	}
	val, _ := domainErr.Details[key].(string)
	return val
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
