package messages

import (
	"regexp"
	"strings"
)

const whatsappSuffix = "@c.us"

var (
	nonDigitRE  = regexp.MustCompile(`\D`)
	postcodeRE  = regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d{1,2}\s?\d[A-Z]{2}\b`)
	postcodeAll = regexp.MustCompile(`(?i)^[A-Z]{1,2}\d{1,2}\s?\d[A-Z]{2}$`)
)

// NormalizePhone strips non-digits and prefixes the UK country code when missing.
func NormalizePhone(phone string) string {
	digits := nonDigitRE.ReplaceAllString(phone, "")
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(digits, "44") {
		return "44" + digits
	}
	return digits
}

// ToWhatsAppPhone formats a phone number with the connector's @c.us suffix.
func ToWhatsAppPhone(phone string) string {
	return NormalizePhone(phone) + whatsappSuffix
}

// FromWhatsAppPhone strips connector suffixes (@c.us for contacts, @g.us for groups).
func FromWhatsAppPhone(phone string) string {
	phone = strings.TrimSuffix(phone, whatsappSuffix)
	return strings.TrimSuffix(phone, "@g.us")
}

// DisplayPhone renders a phone number for the dashboard, E.164-style.
func DisplayPhone(phone string) string {
	clean := FromWhatsAppPhone(phone)
	if strings.HasPrefix(clean, "+") {
		return clean
	}
	return "+" + clean
}

// ExtractPostcode finds the first UK postcode in a message, uppercased, or "".
func ExtractPostcode(text string) string {
	match := postcodeRE.FindString(text)
	return strings.ToUpper(match)
}

// ValidUKPostcode reports whether s is a complete UK postcode.
func ValidUKPostcode(s string) bool {
	return postcodeAll.MatchString(strings.TrimSpace(s))
}
