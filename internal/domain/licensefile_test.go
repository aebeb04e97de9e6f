package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractExpiry(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		found   bool
	}{
		{"EXPIRY key", "Product=PingFederate\nEXPIRY=2026-03-01\n", "2026-03-01", true},
		{"ExpirationDate key", "ExpirationDate=2025-01-15", "2025-01-15", true},
		{"Expires label", "Expires: 2027-06-30", "2027-06-30", true},
		{"Valid Until label", "Valid Until: 2026-12-31", "2026-12-31", true},
		{"first pattern wins", "EXPIRY=2026-01-01\nExpirationDate=2027-01-01", "2026-01-01", true},
		{"no expiry present", "Organization=Acme\nID=ABC123", "", false},
		{"malformed date ignored", "EXPIRY=2026-3-1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractExpiry([]byte(tt.content))
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractOrganization(t *testing.T) {
	org, found := ExtractOrganization([]byte("Organization=Acme Corporation  \nEXPIRY=2026-01-01"))
	assert.True(t, found)
	assert.Equal(t, "Acme Corporation", org)

	_, found = ExtractOrganization([]byte("EXPIRY=2026-01-01"))
	assert.False(t, found)
}

func TestExtractLicenseID(t *testing.T) {
	id, found := ExtractLicenseID([]byte("ID=AB12CD34"))
	assert.True(t, found)
	assert.Equal(t, "AB12CD34", id)

	_, found = ExtractLicenseID([]byte("Organization=Acme"))
	assert.False(t, found)
}
