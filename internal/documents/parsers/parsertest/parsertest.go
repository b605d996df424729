// Package parsertest builds signed payloads in every supported format for
// tests.
package parsertest

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang-jwt/jwt/v5"

	"healthpass/internal/documents/models"
	"healthpass/internal/documents/parsers"
	"healthpass/pkg/platform/sentinel"
)

// KeySet is an in-memory parsers.KeyLookup.
type KeySet struct {
	mu   sync.RWMutex
	keys map[string]crypto.PublicKey
}

func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]crypto.PublicKey)}
}

func (k *KeySet) Add(fingerprint string, key crypto.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[fingerprint] = key
}

func (k *KeySet) Lookup(_ context.Context, fingerprint string) (crypto.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[fingerprint]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", fingerprint, sentinel.ErrNotFound)
	}
	return key, nil
}

// ECDSAKey returns a fresh P-256 key or panics.
func ECDSAKey() *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	return key
}

// Ed25519Key returns a fresh ed25519 key pair or panics.
func Ed25519Key() (ed25519.PublicKey, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return pub, priv
}

// TestResult describes a test result to encode.
type TestResult struct {
	FirstName   string
	LastName    string
	DateOfBirth string
	SampledAt   time.Time
	TestType    string
	Result      string
	Lab         string
	Issuer      string
}

// NegativePCR is a complete, negative PCR result sampled at sampledAt.
func NegativePCR(first, last, dob string, sampledAt time.Time) TestResult {
	return TestResult{
		FirstName: first, LastName: last, DateOfBirth: dob,
		SampledAt: sampledAt, TestType: "pcr", Result: "n",
		Lab: "Central Lab", Issuer: "Central Lab GmbH",
	}
}

func sign(method jwt.SigningMethod, key crypto.PrivateKey, header map[string]any, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(method, claims)
	for k, v := range header {
		token.Header[k] = v
	}
	signed, err := token.SignedString(key)
	if err != nil {
		panic(err)
	}
	return signed
}

// ProviderToken signs r as a provider token with kid. The returned code is a
// URL carrying the token in its fragment.
func ProviderToken(key *ecdsa.PrivateKey, kid string, r TestResult) string {
	claims := jwt.MapClaims{
		"nh":  models.HashName(r.FirstName, r.LastName),
		"dob": r.DateOfBirth,
		"ts":  strconv.FormatInt(r.SampledAt.Unix(), 10),
		"tt":  r.TestType,
		"r":   r.Result,
		"lab": r.Lab,
	}
	if r.Issuer != "" {
		claims["iss"] = r.Issuer
	}
	return "https://results.example/t#" + sign(jwt.SigningMethodES256, key, map[string]any{"kid": kid}, claims)
}

// VoucherTest signs r as a voucher of type test.
func VoucherTest(key *ecdsa.PrivateKey, r TestResult) string {
	claims := jwt.MapClaims{
		"typ": "test",
		"fn":  r.FirstName,
		"ln":  r.LastName,
		"dob": r.DateOfBirth,
		"ts":  r.SampledAt.UTC().Format(time.RFC3339),
		"tt":  r.TestType,
		"r":   r.Result,
		"lab": r.Lab,
	}
	if r.Issuer != "" {
		claims["iss"] = r.Issuer
	}
	return sign(jwt.SigningMethodES256, key, nil, claims)
}

// VoucherAppointment signs an appointment voucher.
func VoucherAppointment(key *ecdsa.PrivateKey, at time.Time, lab, address string) string {
	return sign(jwt.SigningMethodES256, key, nil, jwt.MapClaims{
		"typ":  "appointment",
		"ts":   at.UTC().Format(time.RFC3339),
		"lab":  lab,
		"addr": address,
	})
}

// LabQuery encodes r as a lab result URL, signed when key is non-nil.
func LabQuery(key ed25519.PrivateKey, r TestResult) string {
	pairs := []string{
		"fn=" + url.QueryEscape(r.FirstName),
		"ln=" + url.QueryEscape(r.LastName),
		"dob=" + r.DateOfBirth,
		"ts=" + strconv.FormatInt(r.SampledAt.Unix(), 10),
		"tt=" + r.TestType,
		"r=" + r.Result,
		"lab=" + url.QueryEscape(r.Lab),
	}
	if r.Issuer != "" {
		pairs = append(pairs, "iss="+url.QueryEscape(r.Issuer))
	}
	query := strings.Join(pairs, "&")
	if key != nil {
		sig := ed25519.Sign(key, []byte(query))
		query += "&sig=" + base64.RawURLEncoding.EncodeToString(sig)
	}
	return "https://lab.example/result?" + query
}

// Certificate describes an HC1 certificate; exactly one of Vaccination,
// Test or Recovery should be set.
type Certificate struct {
	Issuer      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	FamilyName  string
	GivenName   string
	DateOfBirth string

	Vaccination *CertificateVaccination
	Test        *CertificateTest
	Recovery    *CertificateRecovery
}

type CertificateVaccination struct {
	DoseNumber int
	DosesTotal int
	Date       string
	Country    string
	Issuer     string
}

type CertificateTest struct {
	Type      string // LP6464-4 or LP217198-3
	SampledAt time.Time
	Negative  bool
	Centre    string
	Country   string
	Issuer    string
}

type CertificateRecovery struct {
	FirstPositive string
	ValidFrom     string
	ValidUntil    string
	Country       string
	Issuer        string
}

// KeyID renders a COSE kid the way the key directory indexes it.
func KeyID(kid []byte) string {
	return base64.StdEncoding.EncodeToString(kid)
}

// HealthCertificate encodes and signs c with ES256 under kid.
func HealthCertificate(key *ecdsa.PrivateKey, kid []byte, c Certificate) string {
	cert := map[string]any{
		"ver": "1.3.0",
		"nam": map[string]any{
			"fn": c.FamilyName, "fnt": models.Standardize(c.FamilyName),
			"gn": c.GivenName, "gnt": models.Standardize(c.GivenName),
		},
		"dob": c.DateOfBirth,
	}
	switch {
	case c.Vaccination != nil:
		v := c.Vaccination
		cert["v"] = []map[string]any{{
			"tg": "840539006", "vp": "1119349007", "mp": "EU/1/20/1528", "ma": "ORG-100030215",
			"dn": v.DoseNumber, "sd": v.DosesTotal, "dt": v.Date,
			"co": v.Country, "is": v.Issuer, "ci": "URN:UVCI:01:XX:VACC",
		}}
	case c.Test != nil:
		t := c.Test
		result := "260373001"
		if t.Negative {
			result = "260415000"
		}
		cert["t"] = []map[string]any{{
			"tg": "840539006", "tt": t.Type, "sc": t.SampledAt.UTC().Format(time.RFC3339),
			"tr": result, "tc": t.Centre, "co": t.Country, "is": t.Issuer, "ci": "URN:UVCI:01:XX:TEST",
		}}
	case c.Recovery != nil:
		r := c.Recovery
		cert["r"] = []map[string]any{{
			"tg": "840539006", "fr": r.FirstPositive, "df": r.ValidFrom, "du": r.ValidUntil,
			"co": r.Country, "is": r.Issuer, "ci": "URN:UVCI:01:XX:RECO",
		}}
	}

	claims := map[int]any{
		1:    c.Issuer,
		-260: map[int]any{1: cert},
	}
	if !c.IssuedAt.IsZero() {
		claims[6] = c.IssuedAt.Unix()
	}
	if !c.ExpiresAt.IsZero() {
		claims[4] = c.ExpiresAt.Unix()
	}
	payload := mustMarshal(claims)
	protected := mustMarshal(map[int]any{1: -7, 4: kid})

	tbs := mustMarshal([]any{"Signature1", protected, []byte{}, payload})
	digest := sha256.Sum256(tbs)
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		panic(err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])

	msg := mustMarshal(cbor.Tag{Number: 18, Content: []any{protected, map[int]any{}, payload, sig}})

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(msg); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return "HC1:" + parsers.EncodeBase45(buf.Bytes())
}

func mustMarshal(v any) []byte {
	b, err := cbor.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
