package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HolderName decides whether a user's name matches the holder of a document.
// Each issuer format brings its own strategy.
type HolderName interface {
	Matches(firstName, lastName string) bool
}

// ExactName matches trimmed names case-insensitively.
type ExactName struct {
	FirstName string
	LastName  string
}

func (n ExactName) Matches(firstName, lastName string) bool {
	return n.FirstName != "" && n.LastName != "" &&
		strings.EqualFold(strings.TrimSpace(n.FirstName), strings.TrimSpace(firstName)) &&
		strings.EqualFold(strings.TrimSpace(n.LastName), strings.TrimSpace(lastName))
}

// HashedName matches against a digest produced by HashName, for issuers that
// never reveal the holder's name in clear text.
type HashedName struct {
	Digest string
}

func (n HashedName) Matches(firstName, lastName string) bool {
	if n.Digest == "" {
		return false
	}
	want := []byte(strings.ToLower(n.Digest))
	got := []byte(HashName(firstName, lastName))
	return subtle.ConstantTimeCompare(want, got) == 1
}

// HashName returns the lowercase hex SHA-256 of the folded "first last" name.
func HashName(firstName, lastName string) string {
	folded := strings.ToLower(foldASCII(strings.TrimSpace(firstName)) + " " + foldASCII(strings.TrimSpace(lastName)))
	sum := sha256.Sum256([]byte(folded))
	return hex.EncodeToString(sum[:])
}

// StandardizedName matches ICAO 9303 style transliterations as printed in
// machine-readable zones ("MUELLER<ANNA" style fields).
type StandardizedName struct {
	Forename string
	Surname  string
}

func (n StandardizedName) Matches(firstName, lastName string) bool {
	if n.Surname == "" {
		return false
	}
	if Standardize(lastName) != strings.ToUpper(n.Surname) {
		return false
	}
	forename := strings.ToUpper(n.Forename)
	given := Standardize(firstName)
	if forename == given {
		return true
	}
	// Only the first of several given names is commonly entered by users.
	return given != "" && strings.HasPrefix(forename, given+"<")
}

var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

// foldASCII strips diacritics (é → e) so names typed with or without accents
// compare equal.
func foldASCII(s string) string {
	if s == "" {
		return ""
	}
	t := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(t, s)
	t.Reset()
	foldPool.Put(t)
	if err != nil {
		return s
	}
	return out
}

var transliterations = strings.NewReplacer(
	"Ä", "AE", "Ö", "OE", "Ü", "UE", "ß", "SS",
	"ä", "AE", "ö", "OE", "ü", "UE",
	"Æ", "AE", "æ", "AE", "Ø", "OE", "ø", "OE", "Å", "AA", "å", "AA",
)

// Standardize maps a name to its machine-readable form: transliterated,
// upper-case ASCII, runs of separators collapsed to a single '<'.
func Standardize(name string) string {
	name = foldASCII(transliterations.Replace(strings.TrimSpace(name)))
	var b strings.Builder
	b.Grow(len(name))
	sep := false
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z':
			if sep && b.Len() > 0 {
				b.WriteByte('<')
			}
			sep = false
			b.WriteRune(r)
		default:
			sep = true
		}
	}
	return b.String()
}
