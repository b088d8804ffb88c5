// Package string holds small text helpers shared by request validation.
package string

import (
	"strings"
	"unicode"
)

// ToSnakeCase turns a Go field name into the JSON field name clients see,
// keeping acronyms together: "TxReference" -> "tx_reference",
// "HolderBirthDate" -> "holder_birth_date", "IssuerID" -> "issuer_id".
func ToSnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
