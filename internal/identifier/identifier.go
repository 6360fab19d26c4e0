package identifier

import (
	"strings"
	"unicode"
)

// Kind is the classification of a raw product identifier.
type Kind int

const (
	Invalid Kind = iota
	ASIN
	UPC
)

func (k Kind) String() string {
	switch k {
	case ASIN:
		return "ASIN"
	case UPC:
		return "UPC"
	}
	return "Invalid"
}

// MarshalText lets Kind render as its name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Classify decides whether raw is an ASIN, a UPC/EAN, or neither, and returns
// the normalized identifier (trimmed, upper-cased for ASINs). Rules apply in
// order: blank is Invalid; 10 alphanumerics is an ASIN; 12 to 14 digits is a
// UPC/EAN; anything else is Invalid.
func Classify(raw string) (Kind, string) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return Invalid, ""
	}

	if len(id) == 10 && allASCII(id, isAlphanumeric) {
		return ASIN, strings.ToUpper(id)
	}

	if len(id) >= 12 && len(id) <= 14 && allASCII(id, isDigit) {
		return UPC, id
	}

	return Invalid, id
}

func allASCII(s string, ok func(byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if !ok(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isAlphanumeric(b byte) bool {
	return isDigit(b) || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// Parse splits pasted text into identifiers. Newlines, commas, semicolons,
// tabs and spaces all separate entries; blanks are dropped and order is kept.
func Parse(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
