package parsers

import (
	"fmt"
	"strings"
)

const base45Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

var base45Values = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(base45Alphabet); i++ {
		t[base45Alphabet[i]] = int8(i)
	}
	return t
}()

// decodeBase45 implements RFC 9285 decoding.
func decodeBase45(s string) ([]byte, error) {
	if len(s)%3 == 1 {
		return nil, fmt.Errorf("base45: invalid length %d", len(s))
	}
	out := make([]byte, 0, len(s)/3*2+1)
	for i := 0; i < len(s); i += 3 {
		end := min(i+3, len(s))
		chunk := s[i:end]
		n := 0
		mul := 1
		for j := 0; j < len(chunk); j++ {
			v := base45Values[chunk[j]]
			if v < 0 {
				return nil, fmt.Errorf("base45: invalid character %q at %d", chunk[j], i+j)
			}
			n += int(v) * mul
			mul *= 45
		}
		if len(chunk) == 3 {
			if n > 0xFFFF {
				return nil, fmt.Errorf("base45: chunk at %d overflows", i)
			}
			out = append(out, byte(n>>8), byte(n))
		} else {
			if n > 0xFF {
				return nil, fmt.Errorf("base45: chunk at %d overflows", i)
			}
			out = append(out, byte(n))
		}
	}
	return out, nil
}

// EncodeBase45 is the inverse of decodeBase45.
func EncodeBase45(data []byte) string {
	var b strings.Builder
	b.Grow(len(data)/2*3 + 2)
	for i := 0; i+1 < len(data); i += 2 {
		n := int(data[i])<<8 | int(data[i+1])
		b.WriteByte(base45Alphabet[n%45])
		b.WriteByte(base45Alphabet[n/45%45])
		b.WriteByte(base45Alphabet[n/2025])
	}
	if len(data)%2 == 1 {
		n := int(data[len(data)-1])
		b.WriteByte(base45Alphabet[n%45])
		b.WriteByte(base45Alphabet[n/45])
	}
	return b.String()
}
