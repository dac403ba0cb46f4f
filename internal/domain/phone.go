package domain

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned for numbers that are not Kenyan mobile numbers.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts local Kenyan formats to the 2547XXXXXXXX / 2541XXXXXXXX
// form expected by M-Pesa.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	phone = strings.TrimPrefix(phone, "+")
	if phone == "" || !isDigits(phone) {
		return "", ErrInvalidPhone
	}

	switch {
	case strings.HasPrefix(phone, "254") && len(phone) == 12:
	case strings.HasPrefix(phone, "0") && len(phone) == 10:
		phone = "254" + phone[1:]
	case len(phone) == 9:
		phone = "254" + phone
	default:
		return "", ErrInvalidPhone
	}

	if phone[3] != '7' && phone[3] != '1' {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
