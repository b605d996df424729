// Package models defines the documents produced by the ingestion pipeline and
// the optional capabilities each variant exposes.
//
// Document is a closed set: only the variants in this package implement it.
// Capabilities are plain interfaces; the compile-time assertions next to each
// variant form the capability table that validators consult.
package models

import (
	"hash/crc32"
	"strconv"
	"time"
)

// Kind names a document variant.
type Kind string

const (
	KindCoronaTest  Kind = "corona_test"
	KindVaccination Kind = "vaccination"
	KindRecovery    Kind = "recovery"
	KindAppointment Kind = "appointment"
)

// Identifier is the storage, cache and deduplication key of a document.
type Identifier uint32

// NewIdentifier derives the identifier of a raw payload: CRC32 (IEEE) of its
// UTF-8 bytes.
func NewIdentifier(code string) Identifier {
	return Identifier(crc32.ChecksumIEEE([]byte(code)))
}

// ParseIdentifier parses the decimal form produced by String.
func ParseIdentifier(s string) (Identifier, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return Identifier(v), nil
}

func (i Identifier) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

// Document is an immutable, parsed health proof.
type Document interface {
	ID() Identifier
	OriginalCode() string
	ExpiresAt() time.Time
	Kind() Kind

	sealed()
}

// Envelope carries the fields every variant shares.
type Envelope struct {
	code string
	id   Identifier
}

// NewEnvelope binds a variant to its raw payload.
func NewEnvelope(code string) Envelope {
	return Envelope{code: code, id: NewIdentifier(code)}
}

func (e Envelope) ID() Identifier       { return e.id }
func (e Envelope) OriginalCode() string { return e.code }
func (Envelope) sealed()                {}

// Payload is the only durably stored form of a document; everything else is
// re-derivable from OriginalCode.
type Payload struct {
	OriginalCode string     `json:"original_code"`
	Identifier   Identifier `json:"identifier"`
}

// PayloadOf returns the persisted form of doc.
func PayloadOf(doc Document) Payload {
	return Payload{OriginalCode: doc.OriginalCode(), Identifier: doc.ID()}
}

// IDs returns the identifiers of docs in order.
func IDs(docs []Document) []Identifier {
	ids := make([]Identifier, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID())
	}
	return ids
}
