// Package parsers converts raw scanned strings into typed documents. Every
// parser is stateless apart from injected keys and never panics on input:
// failures are reported as *ParseError.
package parsers

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"

	"healthpass/internal/documents/models"
)

// Parser turns one issuer format into a document.
type Parser interface {
	// ID returns a unique, stable name for the format.
	ID() string

	// Parse decodes and verifies raw.
	Parse(ctx context.Context, raw string) (models.Document, error)
}

// KeyLookup resolves a provider public key by the fingerprint embedded in a
// scanned payload.
type KeyLookup interface {
	Lookup(ctx context.Context, fingerprint string) (crypto.PublicKey, error)
}

// ErrorCategory is the normalized parser failure taxonomy.
type ErrorCategory string

const (
	// CategoryParsing means the input is not (a well-formed instance of) this format.
	CategoryParsing ErrorCategory = "parsing_failed"

	// CategoryVerification means the format was recognized but its signature
	// did not verify.
	CategoryVerification ErrorCategory = "verification_failed"
)

var (
	ErrParsingFailed      = errors.New("parsing failed")
	ErrVerificationFailed = errors.New("verification failed")
)

// ParseError wraps parser failures with a normalized category.
type ParseError struct {
	Category   ErrorCategory
	ParserID   string
	Message    string
	Underlying error
}

func (e *ParseError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("parser %s [%s]: %s: %v", e.ParserID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("parser %s [%s]: %s", e.ParserID, e.Category, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// Is lets callers match a ParseError against ErrParsingFailed or
// ErrVerificationFailed.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrParsingFailed:
		return e.Category == CategoryParsing
	case ErrVerificationFailed:
		return e.Category == CategoryVerification
	}
	return false
}

func parsingFailed(parserID, msg string, err error) *ParseError {
	return &ParseError{Category: CategoryParsing, ParserID: parserID, Message: msg, Underlying: err}
}

func verificationFailed(parserID, msg string, err error) *ParseError {
	return &ParseError{Category: CategoryVerification, ParserID: parserID, Message: msg, Underlying: err}
}

// IsVerificationFailure reports whether err is a signature failure.
func IsVerificationFailure(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// AfterMarker returns the content after the last occurrence of marker, or raw
// unchanged when the marker is absent. Scanned codes are often URLs whose
// fragment or query carries the payload.
func AfterMarker(raw string, marker byte) string {
	if i := strings.LastIndexByte(raw, marker); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
