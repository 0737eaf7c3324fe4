package scraper

import (
	"fmt"
	"strings"

	"auctionharvester/internal/models"
)

// Filter selects vehicles by registration region and RC status text
type Filter struct {
	RegionPrefix string // case-sensitive prefix of the registration number
	StatusPhrase string // case-insensitive substring of the RC status
}

// Match reports whether the vehicle passes both criteria
func (f Filter) Match(v *models.VehicleRecord) bool {
	return strings.HasPrefix(v.RegistrationNumber, f.RegionPrefix) &&
		strings.Contains(strings.ToLower(v.RCStatus), strings.ToLower(f.StatusPhrase))
}

// Check returns ErrMissingField when v lacks a field the predicate needs
func (f Filter) Check(v *models.VehicleRecord) error {
	var missing []string
	if strings.TrimSpace(v.RegistrationNumber) == "" {
		missing = append(missing, "registration_number")
	}
	if strings.TrimSpace(v.RCStatus) == "" {
		missing = append(missing, "rc_status")
	}
	if len(missing) > 0 {
		return fmt.Errorf("vehicle %s: %w: %s", v.Key(), ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// Apply splits stubs into matches and stubs rejected for missing fields.
// Stubs that are complete but do not match are simply dropped.
func (f Filter) Apply(stubs []models.VehicleRecord) (matched []models.VehicleRecord, missing []error) {
	matched = []models.VehicleRecord{}
	for i := range stubs {
		if err := f.Check(&stubs[i]); err != nil {
			missing = append(missing, err)
			continue
		}
		if f.Match(&stubs[i]) {
			matched = append(matched, stubs[i])
		}
	}
	return matched, missing
}
