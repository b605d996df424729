package parsers

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"healthpass/internal/documents/models"
)

// HealthCertificateID identifies "HC1:" digital health certificates.
const HealthCertificateID = "health-certificate"

const (
	healthCertificatePrefix = "HC1:"
	hcertClaimKey           = 1
	maxInflatedSize         = 64 << 10

	testTypeNAAT    = "LP6464-4"
	testTypeAntigen = "LP217198-3"
	resultNegative  = "260415000"
	resultPositive  = "260373001"
)

type cwtClaims struct {
	Issuer    string                    `cbor:"1,keyasint,omitempty"`
	ExpiresAt int64                     `cbor:"4,keyasint,omitempty"`
	IssuedAt  int64                     `cbor:"6,keyasint,omitempty"`
	HCert     map[int]healthCertificate `cbor:"-260,keyasint,omitempty"`
}

type healthCertificate struct {
	Version      string             `cbor:"ver,omitempty"`
	Name         certificateName    `cbor:"nam"`
	DateOfBirth  string             `cbor:"dob"`
	Vaccinations []vaccinationEntry `cbor:"v,omitempty"`
	Tests        []testEntry        `cbor:"t,omitempty"`
	Recoveries   []recoveryEntry    `cbor:"r,omitempty"`
}

type certificateName struct {
	FamilyName            string `cbor:"fn,omitempty"`
	FamilyNameStandard    string `cbor:"fnt,omitempty"`
	GivenName             string `cbor:"gn,omitempty"`
	GivenNameStandardized string `cbor:"gnt,omitempty"`
}

type vaccinationEntry struct {
	Target        string `cbor:"tg"`
	Vaccine       string `cbor:"vp"`
	Product       string `cbor:"mp"`
	Manufacturer  string `cbor:"ma"`
	DoseNumber    int    `cbor:"dn"`
	DosesTotal    int    `cbor:"sd"`
	Date          string `cbor:"dt"`
	Country       string `cbor:"co"`
	Issuer        string `cbor:"is"`
	CertificateID string `cbor:"ci"`
}

type testEntry struct {
	Target        string `cbor:"tg"`
	Type          string `cbor:"tt"`
	Name          string `cbor:"nm,omitempty"`
	Device        string `cbor:"ma,omitempty"`
	SampledAt     string `cbor:"sc"`
	Result        string `cbor:"tr"`
	Centre        string `cbor:"tc,omitempty"`
	Country       string `cbor:"co"`
	Issuer        string `cbor:"is"`
	CertificateID string `cbor:"ci"`
}

type recoveryEntry struct {
	Target        string `cbor:"tg"`
	FirstPositive string `cbor:"fr"`
	Country       string `cbor:"co"`
	Issuer        string `cbor:"is"`
	ValidFrom     string `cbor:"df"`
	ValidUntil    string `cbor:"du"`
	CertificateID string `cbor:"ci"`
}

// HealthCertificateParser reads "HC1:" certificates: base45, zlib, a signed
// COSE_Sign1 envelope and a CWT payload carrying exactly one vaccination,
// test or recovery entry. The signing key is looked up by the base64 form of
// the COSE kid.
type HealthCertificateParser struct {
	keys KeyLookup
}

func NewHealthCertificateParser(keys KeyLookup) *HealthCertificateParser {
	return &HealthCertificateParser{keys: keys}
}

func (p *HealthCertificateParser) ID() string { return HealthCertificateID }

func (p *HealthCertificateParser) Parse(ctx context.Context, raw string) (models.Document, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(raw), healthCertificatePrefix)
	if !ok {
		return nil, parsingFailed(HealthCertificateID, "missing HC1 prefix", nil)
	}
	compressed, err := decodeBase45(body)
	if err != nil {
		return nil, parsingFailed(HealthCertificateID, "invalid base45", err)
	}
	data, err := inflate(compressed)
	if err != nil {
		return nil, parsingFailed(HealthCertificateID, "invalid compression", err)
	}
	msg, err := decodeSign1(data)
	if err != nil {
		return nil, parsingFailed(HealthCertificateID, "invalid envelope", err)
	}
	protected, err := msg.protectedHeader()
	if err != nil {
		return nil, parsingFailed(HealthCertificateID, "invalid envelope", err)
	}
	kid, ok := msg.keyID(protected)
	if !ok {
		return nil, parsingFailed(HealthCertificateID, "envelope has no key id", nil)
	}
	alg, ok := msg.algorithm(protected)
	if !ok {
		return nil, parsingFailed(HealthCertificateID, "envelope has no algorithm", nil)
	}
	key, err := p.keys.Lookup(ctx, base64.StdEncoding.EncodeToString(kid))
	if err != nil {
		return nil, parsingFailed(HealthCertificateID, "unknown signing key", err)
	}
	if err := msg.verify(alg, key); err != nil {
		if errors.Is(err, errBadSignature) {
			return nil, verificationFailed(HealthCertificateID, "signature does not verify", err)
		}
		return nil, parsingFailed(HealthCertificateID, "cannot verify envelope", err)
	}

	var claims cwtClaims
	if err := cbor.Unmarshal(msg.Payload, &claims); err != nil {
		return nil, parsingFailed(HealthCertificateID, "invalid claims", err)
	}
	cert, ok := claims.HCert[hcertClaimKey]
	if !ok {
		return nil, parsingFailed(HealthCertificateID, "no certificate in claims", nil)
	}
	return p.document(raw, claims, cert)
}

func (p *HealthCertificateParser) document(raw string, claims cwtClaims, cert healthCertificate) (models.Document, error) {
	if n := len(cert.Vaccinations) + len(cert.Tests) + len(cert.Recoveries); n != 1 {
		return nil, parsingFailed(HealthCertificateID, fmt.Sprintf("expected one entry, found %d", n), nil)
	}
	dob, err := parsePartialDate(cert.DateOfBirth)
	if err != nil {
		return nil, parsingFailed(HealthCertificateID, "invalid date of birth", err)
	}
	holder := standardizedHolder(cert.Name)
	if holder.Surname == "" {
		return nil, parsingFailed(HealthCertificateID, "holder has no surname", nil)
	}
	var expiry time.Time
	if claims.ExpiresAt > 0 {
		expiry = time.Unix(claims.ExpiresAt, 0).UTC()
	}

	switch {
	case len(cert.Vaccinations) == 1:
		v := cert.Vaccinations[0]
		at, err := parseDate(v.Date)
		if err != nil {
			return nil, parsingFailed(HealthCertificateID, "invalid vaccination date", err)
		}
		return &models.Vaccination{
			Envelope:         models.NewEnvelope(raw),
			DoseNumber:       v.DoseNumber,
			DosesTotalNumber: v.DosesTotal,
			VaccinatedAt:     at,
			Product:          v.Product,
			Country:          v.Country,
			IssuedBy:         v.Issuer,
			CertificateID:    v.CertificateID,
			ValidUntil:       expiry,
			Holder:           holder,
			BirthDate:        dob,
		}, nil

	case len(cert.Tests) == 1:
		t := cert.Tests[0]
		sampled, err := time.Parse(time.RFC3339, t.SampledAt)
		if err != nil {
			return nil, parsingFailed(HealthCertificateID, "invalid sample time", err)
		}
		testType, err := certificateTestType(t.Type)
		if err != nil {
			return nil, parsingFailed(HealthCertificateID, "invalid test type", err)
		}
		var negative bool
		switch t.Result {
		case resultNegative:
			negative = true
		case resultPositive:
		default:
			return nil, parsingFailed(HealthCertificateID, fmt.Sprintf("unknown test result %q", t.Result), nil)
		}
		return &models.CoronaTest{
			Envelope:   models.NewEnvelope(raw),
			Date:       sampled.UTC(),
			TestType:   testType,
			Negative:   negative,
			Laboratory: t.Centre,
			IssuedBy:   t.Issuer,
			Holder:     holder,
			BirthDate:  dob,
		}, nil

	default:
		r := cert.Recoveries[0]
		first, err := parseDate(r.FirstPositive)
		if err != nil {
			return nil, parsingFailed(HealthCertificateID, "invalid first positive date", err)
		}
		from, err := parseDate(r.ValidFrom)
		if err != nil {
			return nil, parsingFailed(HealthCertificateID, "invalid validity start", err)
		}
		until, err := parseDate(r.ValidUntil)
		if err != nil {
			return nil, parsingFailed(HealthCertificateID, "invalid validity end", err)
		}
		return &models.Recovery{
			Envelope:       models.NewEnvelope(raw),
			FirstPositive:  first,
			ValidFromDate:  from,
			ValidUntilDate: until,
			Country:        r.Country,
			IssuedBy:       r.Issuer,
			CertificateID:  r.CertificateID,
			Holder:         holder,
			BirthDate:      dob,
		}, nil
	}
}

func inflate(data []byte) ([]byte, error) {
	// Uncompressed payloads are allowed; zlib streams start with 0x78.
	if len(data) == 0 || data[0] != 0x78 {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxInflatedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxInflatedSize {
		return nil, fmt.Errorf("inflated payload exceeds %d bytes", maxInflatedSize)
	}
	return out, nil
}

// parsePartialDate accepts "YYYY", "YYYY-MM" or "YYYY-MM-DD".
func parsePartialDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "2006-01", "2006"} {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func standardizedHolder(n certificateName) models.StandardizedName {
	surname := n.FamilyNameStandard
	if surname == "" {
		surname = models.Standardize(n.FamilyName)
	}
	forename := n.GivenNameStandardized
	if forename == "" {
		forename = models.Standardize(n.GivenName)
	}
	return models.StandardizedName{Forename: forename, Surname: surname}
}

func certificateTestType(code string) (models.TestType, error) {
	switch code {
	case testTypeNAAT:
		return models.TestTypePCR, nil
	case testTypeAntigen:
		return models.TestTypeAntigen, nil
	}
	return "", fmt.Errorf("unknown test type %q", code)
}
