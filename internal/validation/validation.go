package validation

import (
	"fmt"
	"regexp"
	"strings"

	"auctionharvester/internal/models"
)

var (
	slugPattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-/]*$`)
	auctionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
	regUnsafe        = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// MinRegistrationLength is the shortest registration number accepted for download
const MinRegistrationLength = 6

// ValidateDescriptor checks an upstream auction descriptor before seeding
func ValidateDescriptor(d models.AuctionDescriptor) error {
	if d.ID() == "" {
		return fmt.Errorf("auction id is required")
	}
	slug := strings.TrimSpace(d.Slug)
	if slug == "" {
		return fmt.Errorf("auction %s has no slug", d.ID())
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("auction %s slug contains invalid characters", d.ID())
	}
	if d.Expected() < 0 {
		return fmt.Errorf("auction %s has a negative vehicle count", d.ID())
	}
	return nil
}

// ValidateAuctionID validates an auction id taken from a request path
func ValidateAuctionID(id string) error {
	if !auctionIDPattern.MatchString(id) {
		return fmt.Errorf("auction id must be 1-32 letters, digits, underscores or hyphens")
	}
	return nil
}

// ValidateStatus accepts the five auction states, or empty for no filter
func ValidateStatus(s string) error {
	switch models.Status(s) {
	case "", models.StatusComplete, models.StatusPartial, models.StatusNoMatch, models.StatusTimeout, models.StatusFailed:
		return nil
	}
	return fmt.Errorf("unknown status %q", s)
}

// SanitizeRegistration turns a registration number into a folder name:
// upper-cased, with every non-alphanumeric character replaced by '_'
func SanitizeRegistration(raw string) (string, error) {
	reg := strings.ToUpper(strings.TrimSpace(raw))
	if reg == "" {
		return "", fmt.Errorf("registration number is empty")
	}
	if len(reg) < MinRegistrationLength {
		return "", fmt.Errorf("registration number %q is too short", raw)
	}
	return regUnsafe.ReplaceAllString(reg, "_"), nil
}
