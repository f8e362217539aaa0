// Package cnpj formats and normalizes Brazilian company tax identifiers.
package cnpj

import (
	"strings"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
)

// Length is the number of digits in a CNPJ.
const Length = 14

// InvalidMessage is shown when the typed value does not hold exactly 14 digits.
const InvalidMessage = "CNPJ inválido. Digite 14 números."

// Mask formats the digits of raw progressively as 00.000.000/0000-00, applying only
// the groups that are at least partially typed. It never rejects input; digits past
// the fourteenth are kept after the last group.
func Mask(raw string) string {
	d := Unmask(raw)
	n := len(d)

	var b strings.Builder
	b.Grow(n + 4)

	switch {
	case n <= 2:
		return d
	case n <= 5:
		b.WriteString(d[:2])
		b.WriteByte('.')
		b.WriteString(d[2:])
	case n <= 8:
		b.WriteString(d[:2])
		b.WriteByte('.')
		b.WriteString(d[2:5])
		b.WriteByte('.')
		b.WriteString(d[5:])
	case n <= 12:
		b.WriteString(d[:2])
		b.WriteByte('.')
		b.WriteString(d[2:5])
		b.WriteByte('.')
		b.WriteString(d[5:8])
		b.WriteByte('/')
		b.WriteString(d[8:])
	default:
		b.WriteString(d[:2])
		b.WriteByte('.')
		b.WriteString(d[2:5])
		b.WriteByte('.')
		b.WriteString(d[5:8])
		b.WriteByte('/')
		b.WriteString(d[8:12])
		b.WriteByte('-')
		b.WriteString(d[12:])
	}
	return b.String()
}

// Unmask strips every non-digit character.
func Unmask(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Complete reports whether s holds exactly 14 digits once unmasked.
func Complete(s string) bool {
	return len(Unmask(s)) == Length
}

// Normalize returns the 14 digits of s, the only form ever sent to the backend.
func Normalize(s string) (string, error) {
	d := Unmask(s)
	if len(d) != Length {
		return "", &domain.ErrValidation{Field: "cnpj", Message: InvalidMessage}
	}
	return d, nil
}
