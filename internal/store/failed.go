package store

import (
	"encoding/json"
	"fmt"

	"auctionharvester/internal/models"
)

// FailedAuction is one entry of the failed-auction ledger, kept for manual retries
type FailedAuction struct {
	AuctionID    string `json:"auction_id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	VehicleCount int    `json:"vehicle_count"`
	Index        int    `json:"index"`
	Error        string `json:"error"`
}

// FailedAuctions lists the originals whose listing could not be rendered.
// Index is the 1-based position of the record in the collection.
func FailedAuctions(coll models.Collection) []FailedAuction {
	out := []FailedAuction{}
	for i, rec := range coll {
		if rec.Derived || rec.Status != models.StatusFailed {
			continue
		}
		msg := rec.FetchError
		if msg == "" {
			msg = "failed after all retry attempts"
		}
		out = append(out, FailedAuction{
			AuctionID:    rec.ID(),
			Title:        rec.Title,
			Slug:         rec.Slug,
			VehicleCount: rec.Expected(),
			Index:        i + 1,
			Error:        msg,
		})
	}
	return out
}

// WriteFailedLedger rewrites the ledger at path from the collection's current
// failures. An auction recovered by a later round drops out of the ledger.
func WriteFailedLedger(path string, coll models.Collection) (int, error) {
	failed := FailedAuctions(coll)
	data, err := json.MarshalIndent(failed, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal failed auctions: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return 0, err
	}
	return len(failed), nil
}
