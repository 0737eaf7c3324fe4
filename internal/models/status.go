package models

import (
	"fmt"
	"strings"
)

// Status is the completion state of an auction
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusNoMatch  Status = "no_match"
	StatusTimeout  Status = "timeout"
	StatusFailed   Status = "failed"
)

// Counts are the inputs of the status table
type Counts struct {
	Expected   int
	Loaded     int
	Filtered   int
	WithData   int
	WithImages int
	// ListingFailed is set when the listing render ended in a hard failure
	ListingFailed bool
}

// ComputeStatus evaluates the status table. The order of the checks matters:
// a hard listing failure wins over everything, then an empty listing for an
// auction that should have vehicles.
func ComputeStatus(c Counts) Status {
	switch {
	case c.ListingFailed:
		return StatusFailed
	case c.Expected > 0 && c.Loaded == 0:
		return StatusTimeout
	case c.Filtered == 0:
		return StatusNoMatch
	case c.WithImages == c.Filtered:
		return StatusComplete
	default:
		return StatusPartial
	}
}

// Summary renders the human-readable status line stored on each record
func Summary(status Status, c Counts) string {
	return fmt.Sprintf("Status: %s - Expected: %d, Loaded: %d, Filtered: %d, With Data: %d, With Images: %d",
		strings.ToUpper(string(status)), c.Expected, c.Loaded, c.Filtered, c.WithData, c.WithImages)
}

// NeedsSmartRetry reports whether the status is retried by the partial/failed rounds
func (s Status) NeedsSmartRetry() bool {
	return s == StatusPartial || s == StatusFailed
}

// Terminal reports whether no further retry round will touch the auction
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusNoMatch
}
