package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "447700900123", NormalizePhone("+44 7700 900123"))
	assert.Equal(t, "4407700900123", NormalizePhone("07700900123"))
	assert.Equal(t, "", NormalizePhone("no digits"))
}

func TestWhatsAppPhoneRoundTrip(t *testing.T) {
	assert.Equal(t, "447700900123@c.us", ToWhatsAppPhone("447700900123"))
	assert.Equal(t, "447700900123", FromWhatsAppPhone("447700900123@c.us"))
	assert.Equal(t, "447700900123", FromWhatsAppPhone("447700900123@g.us"))
	assert.Equal(t, "447700900123", FromWhatsAppPhone("447700900123"))
}

func TestDisplayPhone(t *testing.T) {
	assert.Equal(t, "+447700900123", DisplayPhone("447700900123@c.us"))
	assert.Equal(t, "+447700900123", DisplayPhone("+447700900123"))
}

func TestExtractPostcode(t *testing.T) {
	assert.Equal(t, "SW1A 1AA", ExtractPostcode("pickup at SW1A 1AA please"))
	assert.Equal(t, "M1 1AE", ExtractPostcode("address is m1 1ae"))
	assert.Equal(t, "", ExtractPostcode("no postcode here"))
}

func TestValidUKPostcode(t *testing.T) {
	assert.True(t, ValidUKPostcode("SW1A 1AA"))
	assert.True(t, ValidUKPostcode("m1 1ae"))
	assert.False(t, ValidUKPostcode("12345"))
	assert.False(t, ValidUKPostcode("SW1A 1AA extra"))
}
