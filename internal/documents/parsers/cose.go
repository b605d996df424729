package parsers

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

const (
	coseSign1Tag = 18

	headerAlgorithm = 1
	headerKeyID     = 4

	algES256 = -7
	algPS256 = -37
)

var (
	errUnsupportedAlgorithm = errors.New("cose: unsupported algorithm")
	errBadSignature         = errors.New("cose: signature does not verify")
)

// sign1 is a COSE_Sign1 message (RFC 9052 §4.2).
type sign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[any]any
	Payload     []byte
	Signature   []byte
}

// decodeSign1 accepts a tagged or untagged COSE_Sign1 structure.
func decodeSign1(data []byte) (*sign1, error) {
	var tag cbor.RawTag
	if err := cbor.Unmarshal(data, &tag); err == nil {
		if tag.Number != coseSign1Tag {
			return nil, fmt.Errorf("cose: unexpected tag %d", tag.Number)
		}
		data = tag.Content
	}
	var msg sign1
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("cose: %w", err)
	}
	if len(msg.Payload) == 0 {
		return nil, errors.New("cose: empty payload")
	}
	if msg.Protected == nil {
		msg.Protected = []byte{}
	}
	return &msg, nil
}

func (m *sign1) protectedHeader() (map[any]any, error) {
	if len(m.Protected) == 0 {
		return map[any]any{}, nil
	}
	var h map[any]any
	if err := cbor.Unmarshal(m.Protected, &h); err != nil {
		return nil, fmt.Errorf("cose: protected header: %w", err)
	}
	return h, nil
}

// header reads label from the protected header, falling back to the
// unprotected one.
func (m *sign1) header(protected map[any]any, label int64) (any, bool) {
	if v, ok := lookupLabel(protected, label); ok {
		return v, true
	}
	return lookupLabel(m.Unprotected, label)
}

func (m *sign1) keyID(protected map[any]any) ([]byte, bool) {
	v, ok := m.header(protected, headerKeyID)
	if !ok {
		return nil, false
	}
	kid, ok := v.([]byte)
	return kid, ok && len(kid) > 0
}

func (m *sign1) algorithm(protected map[any]any) (int64, bool) {
	v, ok := m.header(protected, headerAlgorithm)
	if !ok {
		return 0, false
	}
	return asInt64(v)
}

// verify checks the signature over the Sig_structure with key.
func (m *sign1) verify(alg int64, key crypto.PublicKey) error {
	tbs, err := cbor.Marshal([]any{"Signature1", m.Protected, []byte{}, m.Payload})
	if err != nil {
		return fmt.Errorf("cose: sig structure: %w", err)
	}
	digest := sha256.Sum256(tbs)

	switch alg {
	case algES256:
		pub, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("cose: key type %T does not fit ES256", key)
		}
		if len(m.Signature) != 64 {
			return errBadSignature
		}
		r := new(big.Int).SetBytes(m.Signature[:32])
		s := new(big.Int).SetBytes(m.Signature[32:])
		if !ecdsa.Verify(pub, digest[:], r, s) {
			return errBadSignature
		}
		return nil
	case algPS256:
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("cose: key type %T does not fit PS256", key)
		}
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
		if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], m.Signature, opts); err != nil {
			return errBadSignature
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", errUnsupportedAlgorithm, alg)
	}
}

func lookupLabel(h map[any]any, label int64) (any, bool) {
	for k, v := range h {
		if n, ok := asInt64(k); ok && n == label {
			return v, true
		}
	}
	return nil, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > 1<<63-1 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}
