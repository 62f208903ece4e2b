// ABOUTME: Tests for recipient address normalization
// ABOUTME: Bare numbers gain the user server suffix, full addresses pass through

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRecipient(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare number", "6281234567890", "6281234567890@s.whatsapp.net"},
		{"full address unchanged", "6281234567890@s.whatsapp.net", "6281234567890@s.whatsapp.net"},
		{"group address unchanged", "120363041234567890@g.us", "120363041234567890@g.us"},
		{"leading plus dropped", "+6281234567890", "6281234567890@s.whatsapp.net"},
		{"surrounding space trimmed", "  6281234567890 ", "6281234567890@s.whatsapp.net"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRecipient(tt.in))
		})
	}
}

func TestNormalizeRecipient_SameEffectiveTarget(t *testing.T) {
	bare := NormalizeRecipient("6281234567890")
	full := NormalizeRecipient("6281234567890@s.whatsapp.net")
	assert.Equal(t, full, bare)
}
