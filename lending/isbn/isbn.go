// Package isbn validates ISBN-10 and ISBN-13 check digits.
package isbn

import "strings"

var separators = strings.NewReplacer("-", "", " ", "")

// Normalize strips hyphens and spaces.
func Normalize(s string) string {
	return separators.Replace(strings.TrimSpace(s))
}

// Valid reports whether s is an ISBN-10 or ISBN-13 with a correct check digit.
// Hyphens and spaces are ignored.
func Valid(s string) bool {
	s = Normalize(s)

	switch len(s) {
	case 10:
		return validISBN10(s)
	case 13:
		return validISBN13(s)
	default:
		return false
	}
}

// validISBN10 weights the digits 10..1; the last one may be X for 10.
func validISBN10(s string) bool {
	sum := 0

	for i := 0; i < 9; i++ {
		if !isDigit(s[i]) {
			return false
		}

		sum += int(s[i]-'0') * (10 - i)
	}

	switch last := s[9]; {
	case last == 'X' || last == 'x':
		sum += 10
	case isDigit(last):
		sum += int(last - '0')
	default:
		return false
	}

	return sum%11 == 0
}

// validISBN13 weights the digits alternately 1 and 3.
func validISBN13(s string) bool {
	sum := 0

	for i := 0; i < 13; i++ {
		if !isDigit(s[i]) {
			return false
		}

		if i == 12 {
			break
		}

		digit := int(s[i] - '0')
		if i%2 == 1 {
			digit *= 3
		}

		sum += digit
	}

	return int(s[12]-'0') == (10-sum%10)%10
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
