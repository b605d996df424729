// Package domainerrors carries the user-facing error taxonomy. Services
// translate infrastructure sentinels into one of these codes so callers see a
// single tagged error with a machine-readable kind and a human title.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is the short machine-readable kind of a domain error.
type Code string

const (
	// Parse-time
	CodeParsingFailed      Code = "parsing_failed"
	CodeVerificationFailed Code = "verification_failed"

	// Validation-time
	CodeValidationFailed     Code = "validation_failed"
	CodeNameValidationFailed Code = "name_validation_failed"
	CodeInvalidChildAge      Code = "invalid_child_age"
	CodeExpired              Code = "expired"
	CodePositiveTest         Code = "positive_test"
	CodeNoIssuer             Code = "no_issuer"
	CodeTestInFuture         Code = "test_in_future"

	// Uniqueness-time
	CodeFailedToCreateRandomTag Code = "failed_to_create_random_tag"
	CodeEncodingFailed          Code = "encoding_failed"
	CodeAlreadyRedeemed         Code = "already_redeemed"
	CodeRateLimitReached        Code = "rate_limit_reached"

	// Transport and infrastructure
	CodeBadRequest  Code = "bad_request"
	CodeNotFound    Code = "not_found"
	CodeUnavailable Code = "unavailable"
	CodeInternal    Code = "internal_error"
)

var titles = map[Code]string{
	CodeParsingFailed:           "Unrecognized code",
	CodeVerificationFailed:      "Proof is not authentic",
	CodeValidationFailed:        "Proof is not valid",
	CodeNameValidationFailed:    "Name does not match",
	CodeInvalidChildAge:         "Child is too old",
	CodeExpired:                 "Proof has expired",
	CodePositiveTest:            "Test result is positive",
	CodeNoIssuer:                "Issuer is missing",
	CodeTestInFuture:            "Test date lies in the future",
	CodeFailedToCreateRandomTag: "Could not prepare redemption",
	CodeEncodingFailed:          "Could not prepare redemption",
	CodeAlreadyRedeemed:         "Proof already in use",
	CodeRateLimitReached:        "Too many attempts",
	CodeBadRequest:              "Invalid request",
	CodeNotFound:                "Not found",
	CodeUnavailable:             "Service unavailable",
	CodeInternal:                "Something went wrong",
}

// Title returns the human-readable title for a code.
func Title(code Code) string {
	if t, ok := titles[code]; ok {
		return t
	}
	return titles[CodeInternal]
}

// Error is a domain error: Code is the kind, Message the description.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Title returns the human-readable title for the error's code.
func (e *Error) Title() string {
	return Title(e.Code)
}

// New creates a domain error without an underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and description to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in err's chain is a domain error with code.
// Nested domain errors are checked too, not only the outermost one.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf extracts the outermost domain error code, CodeInternal otherwise.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
