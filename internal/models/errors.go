package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Callers match with errors.Is.
var (
	ErrEmptyContent         = errors.New("journal content is empty")
	ErrExtractionMalformed  = errors.New("extraction output is malformed")
	ErrRateLimited          = errors.New("extraction service rate limited")
	ErrQuotaExhausted       = errors.New("extraction service quota exhausted")
	ErrNotFound             = errors.New("record not found")
	ErrNotConnected         = errors.New("external calendar not connected")
	ErrAuthExpired          = errors.New("external calendar authorization expired")
	ErrPartialInsertFailure = errors.New("derived records not inserted")
	ErrUnknownBackend       = errors.New("backend error")

	// ErrInvalidInput covers request values the store refuses, such as a
	// malformed event date.
	ErrInvalidInput = errors.New("invalid input")
)

// Kind returns the taxonomy name of err, or UnknownBackendError.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyContent):
		return "EmptyContent"
	case errors.Is(err, ErrExtractionMalformed):
		return "ExtractionMalformed"
	case errors.Is(err, ErrRateLimited):
		return "RateLimited"
	case errors.Is(err, ErrQuotaExhausted):
		return "QuotaExhausted"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrNotConnected):
		return "NotConnected"
	case errors.Is(err, ErrAuthExpired):
		return "AuthExpired"
	case errors.Is(err, ErrPartialInsertFailure):
		return "PartialInsertFailure"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	}
	return "UnknownBackendError"
}

// UserMessage is the actionable text shown for err.
func UserMessage(err error) string {
	switch Kind(err) {
	case "EmptyContent":
		return "Please write something in your journal."
	case "ExtractionMalformed":
		return "We could not understand the AI response. Please try again."
	case "RateLimited":
		return "Rate limit exceeded. Please try again later."
	case "QuotaExhausted":
		return "AI credits depleted. Please add credits to continue."
	case "NotFound":
		return "That item no longer exists."
	case "NotConnected":
		return "Google Calendar is not connected."
	case "AuthExpired":
		return "Google Calendar access expired. Please reconnect."
	case "PartialInsertFailure":
		return "Some extracted items could not be saved."
	case "InvalidInput":
		return "Some of the values are not valid."
	}
	return "Something went wrong. Please try again."
}

// CategoryFailure records a derived-record batch that failed to insert.
type CategoryFailure struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Err      error  `json:"-"`
}

func (f CategoryFailure) Error() string {
	return fmt.Sprintf("insert %d %s: %v", f.Count, f.Category, f.Err)
}

func (f CategoryFailure) Unwrap() []error {
	return []error{ErrPartialInsertFailure, f.Err}
}

// MarshalJSON reports the failed category without the underlying cause.
func (f CategoryFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Category string `json:"category"`
		Count    int    `json:"count"`
		Kind     string `json:"kind"`
		Error    string `json:"error"`
	}{f.Category, f.Count, "PartialInsertFailure", UserMessage(ErrPartialInsertFailure)})
}
