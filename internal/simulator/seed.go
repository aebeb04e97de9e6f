package simulator

import (
	"fmt"
	"math/rand"
	"time"

	"pfagent/internal/domain"
)

// randomSeed keeps generated data deterministic across runs.
const randomSeed = 42

var seedCompanies = []string{"Acme Corporation", "TechCorp Inc", "Global Industries"}

// expiryPattern weights model a realistic enterprise license spread,
// including a few instances that are about to expire or already have.
var expiryPatterns = []struct {
	days   int
	weight int
}{
	{730, 20}, // 2 years (new licenses)
	{365, 30}, // 1 year (standard renewals)
	{180, 20}, // 6 months (pilot projects)
	{90, 15},  // 3 months (testing/POC)
	{30, 10},  // 1 month (about to expire)
	{7, 3},    // 1 week (urgent renewal)
	{-15, 2},  // expired (delayed renewal)
}

// SeedLicenses generates a deterministic license view per instance id.
func SeedLicenses(instanceIDs []string) map[string]domain.LicenseView {
	rng := rand.New(rand.NewSource(randomSeed))
	now := time.Now().UTC()

	totalWeight := 0
	for _, p := range expiryPatterns {
		totalWeight += p.weight
	}

	licenses := make(map[string]domain.LicenseView, len(instanceIDs))
	for i, id := range instanceIDs {
		pick := rng.Intn(totalWeight)
		days := expiryPatterns[0].days
		for _, p := range expiryPatterns {
			if pick < p.weight {
				days = p.days
				break
			}
			pick -= p.weight
		}

		licenses[id] = domain.LicenseView{
			IssuedTo:     seedCompanies[i%len(seedCompanies)],
			Product:      "PingFederate",
			ExpiryDate:   now.AddDate(0, 0, days).Format("2006-01-02"),
			LicenseKeyID: fmt.Sprintf("LIC-%08X", rng.Uint32()),
		}
	}
	return licenses
}
