// Package whatsapp builds click-to-chat links and addresses for client phone
// numbers as entered in the booking form.
package whatsapp

import (
	"net/url"
	"strings"
)

// DefaultCountryCode is prefixed to numbers entered without one.
const DefaultCountryCode = "55"

// ConfirmationMessage is sent to a client when the shop confirms a booking.
const ConfirmationMessage = "Olá! Seu horário foi confirmado com sucesso.\nMuito obrigado pela preferência! ✂️"

// NormalizePhone keeps only the digits of raw and prefixes countryCode when
// the number does not already start with it. It returns "" when raw has no
// digits.
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if countryCode != "" && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits
}

// Link returns a wa.me deep link that opens a chat with phone prefilled
// with message.
func Link(phone, countryCode, message string) string {
	digits := NormalizePhone(phone, countryCode)
	if digits == "" {
		return ""
	}
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + text
}

// Address returns the E.164 "whatsapp:" address messaging APIs expect.
func Address(phone, countryCode string) string {
	digits := NormalizePhone(phone, countryCode)
	if digits == "" {
		return ""
	}
	return "whatsapp:+" + digits
}
