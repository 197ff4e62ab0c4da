package validator

import "strings"

// Phone accepts phone numbers and normalizes them to +<digits>.
// Domestic 11-digit numbers starting with 8 or 7 become +7XXXXXXXXXX.
func Phone() Validator {
	return Func(validatePhone)
}

func validatePhone(in Input, _ Scope) Outcome {
	raw := strings.TrimSpace(in.Text)
	if raw == "" {
		return Reject(ReasonInvalidPhone)
	}

	var digits strings.Builder
	plus := false
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
			plus = true
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return Reject(ReasonInvalidPhone)
		}
	}

	d := digits.String()
	switch {
	case !plus && len(d) == 11 && (d[0] == '8' || d[0] == '7'):
		return Accept("+7" + d[1:])
	case plus && len(d) >= 10 && len(d) <= 15 && d[0] != '0':
		return Accept("+" + d)
	}
	return Reject(ReasonInvalidPhone)
}

// Plate accepts a vehicle license plate, upper-cased with separators removed
func Plate() Validator {
	return Func(validatePlate)
}

func validatePlate(in Input, _ Scope) Outcome {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(in.Text)) {
		switch {
		case r == ' ' || r == '-':
		case isPlateRune(r):
			b.WriteRune(r)
		default:
			return Reject(ReasonInvalidPlate)
		}
	}

	plate := b.String()
	n := len([]rune(plate))
	if n < 6 || n > 12 {
		return Reject(ReasonInvalidPlate)
	}
	return Accept(plate)
}

func isPlateRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'А' && r <= 'Я') || r == 'Ё'
}
