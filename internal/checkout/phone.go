package checkout

import (
	"errors"
	"strings"
	"unicode"
)

var ErrInvalidPhone = errors.New("enter a Safaricom number like 0712345678 or 254712345678")

// NormalizePhone turns 07XXXXXXXX, 01XXXXXXXX, +2547XXXXXXXX and
// 2547XXXXXXXX (spaces and dashes allowed) into the 254XXXXXXXXX form the
// STK push endpoint expects.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0, r == ' ', r == '-':
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10 && digits[0] == '0':
		digits = "254" + digits[1:]
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		digits = "254" + digits
	}

	if len(digits) != 12 || !strings.HasPrefix(digits, "254") {
		return "", ErrInvalidPhone
	}
	if digits[3] != '7' && digits[3] != '1' {
		return "", ErrInvalidPhone
	}
	return digits, nil
}
