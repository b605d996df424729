package parsers

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var errMissingKeyID = errors.New("token has no key id")

// newTokenParser builds the shared JWT parser. Claim times are not validated
// here: an expired token is still the right format, expiry is a validation
// concern.
func newTokenParser() *jwt.Parser {
	return jwt.NewParser(jwt.WithoutClaimsValidation())
}

// looksLikeToken rejects obviously foreign input before any crypto work.
func looksLikeToken(s string) bool {
	return s != "" && strings.Count(s, ".") == 2 && !strings.ContainsAny(s, " \n\t")
}

// keyForMethod checks that the token's algorithm fits the key type.
func keyForMethod(token *jwt.Token, key crypto.PublicKey) (crypto.PublicKey, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodECDSA:
		if _, ok := key.(*ecdsa.PublicKey); ok {
			return key, nil
		}
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		if _, ok := key.(*rsa.PublicKey); ok {
			return key, nil
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q: %w", token.Method.Alg(), jwt.ErrTokenUnverifiable)
	}
	return nil, fmt.Errorf("key type %T does not fit %q: %w", key, token.Method.Alg(), jwt.ErrTokenUnverifiable)
}

// classifyTokenError maps jwt failures onto the parser taxonomy: only a bad
// signature is a verification failure.
func classifyTokenError(parserID string, err error) *ParseError {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return verificationFailed(parserID, "token signature does not verify", err)
	}
	return parsingFailed(parserID, "not a valid token", err)
}
