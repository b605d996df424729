package parsers

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"healthpass/internal/documents/models"
)

// ProviderTokenID identifies signed test results issued by test providers.
const ProviderTokenID = "provider-token"

type providerClaims struct {
	NameHash    string `json:"nh"`
	DateOfBirth string `json:"dob"`
	SampledAt   string `json:"ts"`
	TestType    string `json:"tt"`
	Result      string `json:"r"`
	Lab         string `json:"lab"`
	jwt.RegisteredClaims
}

// ProviderTokenParser reads JWTs signed by a test provider whose key is
// looked up by the token's kid.
type ProviderTokenParser struct {
	keys   KeyLookup
	parser *jwt.Parser
}

func NewProviderTokenParser(keys KeyLookup) *ProviderTokenParser {
	return &ProviderTokenParser{keys: keys, parser: newTokenParser()}
}

func (p *ProviderTokenParser) ID() string { return ProviderTokenID }

func (p *ProviderTokenParser) Parse(ctx context.Context, raw string) (models.Document, error) {
	token := strings.TrimSpace(AfterMarker(raw, '#'))
	if !looksLikeToken(token) {
		return nil, parsingFailed(ProviderTokenID, "not a token", nil)
	}

	var claims providerClaims
	_, err := p.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKeyID
		}
		key, err := p.keys.Lookup(ctx, kid)
		if err != nil {
			return nil, err
		}
		return keyForMethod(t, key)
	})
	if err != nil {
		return nil, classifyTokenError(ProviderTokenID, err)
	}

	fields := map[string]string{
		"nh": claims.NameHash, "dob": claims.DateOfBirth, "ts": claims.SampledAt,
		"tt": claims.TestType, "r": claims.Result,
	}
	if err := required(fields, "nh", "dob", "ts", "tt", "r"); err != nil {
		return nil, parsingFailed(ProviderTokenID, "incomplete claims", err)
	}
	if _, err := hex.DecodeString(claims.NameHash); err != nil || len(claims.NameHash) != 64 {
		return nil, parsingFailed(ProviderTokenID, "name hash is not a sha-256 digest", err)
	}
	dob, err := parseDate(claims.DateOfBirth)
	if err != nil {
		return nil, parsingFailed(ProviderTokenID, "invalid date of birth", err)
	}
	sampled, err := parseTimestamp(claims.SampledAt)
	if err != nil {
		return nil, parsingFailed(ProviderTokenID, "invalid sample time", err)
	}
	testType, err := parseTestType(claims.TestType)
	if err != nil {
		return nil, parsingFailed(ProviderTokenID, "invalid test type", err)
	}
	negative, err := parseNegative(claims.Result)
	if err != nil {
		return nil, parsingFailed(ProviderTokenID, "invalid result", err)
	}

	return &models.CoronaTest{
		Envelope:   models.NewEnvelope(raw),
		Date:       sampled,
		TestType:   testType,
		Negative:   negative,
		Laboratory: claims.Lab,
		IssuedBy:   claims.Issuer,
		Holder:     models.HashedName{Digest: strings.ToLower(claims.NameHash)},
		BirthDate:  dob,
	}, nil
}
