package parsers

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"healthpass/internal/documents/models"
)

// LabQueryID identifies lab results encoded as key=value pairs after '?'.
const LabQueryID = "lab-query"

const signatureField = "sig"

// LabQueryParser reads lab results of the form
// "<anything>?fn=..&ln=..&dob=..&ts=..&tt=..&r=..&lab=..[&iss=..][&sig=..]".
// Pairs may be separated by '&' or ';'. When a key is configured, the pairs
// other than sig, joined with '&' in their original order, must carry a
// valid ed25519 signature.
type LabQueryParser struct {
	key ed25519.PublicKey
}

// NewLabQueryParser returns a parser; a nil key disables signature checks.
func NewLabQueryParser(key ed25519.PublicKey) *LabQueryParser {
	return &LabQueryParser{key: key}
}

func (p *LabQueryParser) ID() string { return LabQueryID }

func (p *LabQueryParser) Parse(_ context.Context, raw string) (models.Document, error) {
	idx := strings.IndexByte(raw, '?')
	if idx < 0 {
		return nil, parsingFailed(LabQueryID, "no query marker", nil)
	}
	fields, signed, sig, err := splitPairs(raw[idx+1:])
	if err != nil {
		return nil, parsingFailed(LabQueryID, "malformed pairs", err)
	}
	if err := required(fields, "fn", "ln", "dob", "ts", "tt", "r", "lab"); err != nil {
		return nil, parsingFailed(LabQueryID, "incomplete lab result", err)
	}

	if p.key != nil {
		if sig == "" {
			return nil, verificationFailed(LabQueryID, "missing signature", nil)
		}
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(sig, "="))
		if err != nil {
			return nil, verificationFailed(LabQueryID, "signature is not base64url", err)
		}
		if !ed25519.Verify(p.key, []byte(signed), decoded) {
			return nil, verificationFailed(LabQueryID, "signature does not verify", nil)
		}
	}

	dob, err := parseDate(fields["dob"])
	if err != nil {
		return nil, parsingFailed(LabQueryID, "invalid date of birth", err)
	}
	sampled, err := parseTimestamp(fields["ts"])
	if err != nil {
		return nil, parsingFailed(LabQueryID, "invalid sample time", err)
	}
	testType, err := parseTestType(fields["tt"])
	if err != nil {
		return nil, parsingFailed(LabQueryID, "invalid test type", err)
	}
	negative, err := parseNegative(fields["r"])
	if err != nil {
		return nil, parsingFailed(LabQueryID, "invalid result", err)
	}

	issuer := fields["iss"]
	if issuer == "" {
		issuer = fields["lab"]
	}
	return &models.CoronaTest{
		Envelope:   models.NewEnvelope(raw),
		Date:       sampled,
		TestType:   testType,
		Negative:   negative,
		Laboratory: fields["lab"],
		IssuedBy:   issuer,
		Holder:     models.ExactName{FirstName: fields["fn"], LastName: fields["ln"]},
		BirthDate:  dob,
	}, nil
}

// splitPairs decodes the query into fields and returns the canonical signed
// text (pairs other than sig, still encoded, joined by '&') and the raw sig.
func splitPairs(query string) (map[string]string, string, string, error) {
	if i := strings.IndexByte(query, '#'); i >= 0 {
		query = query[:i]
	}
	parts := strings.FieldsFunc(query, func(r rune) bool { return r == '&' || r == ';' })
	if len(parts) == 0 {
		return nil, "", "", fmt.Errorf("empty query")
	}

	fields := make(map[string]string, len(parts))
	signed := make([]string, 0, len(parts))
	var sig string
	for _, part := range parts {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, "", "", fmt.Errorf("pair %q has no '='", part)
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, "", "", fmt.Errorf("key %q: %w", k, err)
		}
		if key == signatureField {
			sig = v
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, "", "", fmt.Errorf("value of %q: %w", key, err)
		}
		if _, dup := fields[key]; dup {
			return nil, "", "", fmt.Errorf("duplicate key %q", key)
		}
		fields[key] = value
		signed = append(signed, part)
	}
	return fields, strings.Join(signed, "&"), sig, nil
}
