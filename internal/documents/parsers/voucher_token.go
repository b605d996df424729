package parsers

import (
	"context"
	"crypto"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"healthpass/internal/documents/models"
)

// VoucherTokenID identifies tokens signed with the app-embedded voucher key.
const VoucherTokenID = "voucher-token"

const (
	voucherTypeAppointment = "appointment"
	voucherTypeTest        = "test"
)

type voucherClaims struct {
	Type        string `json:"typ"`
	FirstName   string `json:"fn"`
	LastName    string `json:"ln"`
	DateOfBirth string `json:"dob"`
	Timestamp   string `json:"ts"`
	TestType    string `json:"tt"`
	Result      string `json:"r"`
	Lab         string `json:"lab"`
	Address     string `json:"addr"`
	jwt.RegisteredClaims
}

// VoucherTokenParser reads vouchers signed with one embedded public key. The
// typ claim selects between an appointment and a test result.
type VoucherTokenParser struct {
	key    crypto.PublicKey
	parser *jwt.Parser
}

func NewVoucherTokenParser(key crypto.PublicKey) *VoucherTokenParser {
	return &VoucherTokenParser{key: key, parser: newTokenParser()}
}

func (p *VoucherTokenParser) ID() string { return VoucherTokenID }

func (p *VoucherTokenParser) Parse(_ context.Context, raw string) (models.Document, error) {
	token := strings.TrimSpace(AfterMarker(raw, '#'))
	if !looksLikeToken(token) {
		return nil, parsingFailed(VoucherTokenID, "not a token", nil)
	}

	var claims voucherClaims
	_, err := p.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return keyForMethod(t, p.key)
	})
	if err != nil {
		return nil, classifyTokenError(VoucherTokenID, err)
	}

	switch claims.Type {
	case voucherTypeAppointment:
		return p.appointment(raw, claims)
	case voucherTypeTest:
		return p.test(raw, claims)
	default:
		return nil, parsingFailed(VoucherTokenID, fmt.Sprintf("unknown voucher type %q", claims.Type), nil)
	}
}

func (p *VoucherTokenParser) appointment(raw string, c voucherClaims) (models.Document, error) {
	if err := required(map[string]string{"ts": c.Timestamp, "lab": c.Lab}, "ts", "lab"); err != nil {
		return nil, parsingFailed(VoucherTokenID, "incomplete appointment", err)
	}
	at, err := parseTimestamp(c.Timestamp)
	if err != nil {
		return nil, parsingFailed(VoucherTokenID, "invalid appointment time", err)
	}
	return &models.Appointment{
		Envelope:  models.NewEnvelope(raw),
		Timestamp: at,
		Lab:       c.Lab,
		Address:   c.Address,
	}, nil
}

func (p *VoucherTokenParser) test(raw string, c voucherClaims) (models.Document, error) {
	fields := map[string]string{
		"fn": c.FirstName, "ln": c.LastName, "dob": c.DateOfBirth,
		"ts": c.Timestamp, "tt": c.TestType, "r": c.Result,
	}
	if err := required(fields, "fn", "ln", "dob", "ts", "tt", "r"); err != nil {
		return nil, parsingFailed(VoucherTokenID, "incomplete test result", err)
	}
	dob, err := parseDate(c.DateOfBirth)
	if err != nil {
		return nil, parsingFailed(VoucherTokenID, "invalid date of birth", err)
	}
	sampled, err := parseTimestamp(c.Timestamp)
	if err != nil {
		return nil, parsingFailed(VoucherTokenID, "invalid sample time", err)
	}
	testType, err := parseTestType(c.TestType)
	if err != nil {
		return nil, parsingFailed(VoucherTokenID, "invalid test type", err)
	}
	negative, err := parseNegative(c.Result)
	if err != nil {
		return nil, parsingFailed(VoucherTokenID, "invalid result", err)
	}
	return &models.CoronaTest{
		Envelope:   models.NewEnvelope(raw),
		Date:       sampled,
		TestType:   testType,
		Negative:   negative,
		Laboratory: c.Lab,
		IssuedBy:   c.Issuer,
		Holder:     models.ExactName{FirstName: c.FirstName, LastName: c.LastName},
		BirthDate:  dob,
	}, nil
}
