package domain

import (
	"regexp"
	"strings"
)

// Patterns recognized inside raw PingFederate license files. Vendors emit a
// few different key names for the expiry, so all of them are tried in order.
var (
	expiryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`EXPIRY=(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`ExpirationDate=(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`Expires:\s*(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`Valid Until:\s*(\d{4}-\d{2}-\d{2})`),
	}
	organizationPattern = regexp.MustCompile(`Organization=(.+)`)
	licenseIDPattern    = regexp.MustCompile(`ID=(\w+)`)
)

// ExtractExpiry scans license file content for a contained expiry date.
func ExtractExpiry(content []byte) (string, bool) {
	for _, p := range expiryPatterns {
		if m := p.FindSubmatch(content); m != nil {
			return string(m[1]), true
		}
	}
	return "", false
}

// ExtractOrganization scans license file content for the licensed
// organization name.
func ExtractOrganization(content []byte) (string, bool) {
	if m := organizationPattern.FindSubmatch(content); m != nil {
		return strings.TrimSpace(string(m[1])), true
	}
	return "", false
}

// ExtractLicenseID scans license file content for the license key id.
func ExtractLicenseID(content []byte) (string, bool) {
	if m := licenseIDPattern.FindSubmatch(content); m != nil {
		return string(m[1]), true
	}
	return "", false
}
