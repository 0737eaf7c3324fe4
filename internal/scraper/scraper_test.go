package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"auctionharvester/internal/models"
)

func TestSelectByTitleDate(t *testing.T) {
	descs := []models.AuctionDescriptor{
		{AuctionID: "1", Title: "Salvage Auction Non Motor J 10Dec25", Slug: "a"},
		{AuctionID: "2", Title: "Salvage Auction Motor 5jan26", Slug: "b"},
		{AuctionID: "3", Title: "Bank Repossessed Fleet", Slug: "c"},
		{AuctionID: "4", Title: "Insurance 10DEC25 Batch 2", Slug: "d"},
		{AuctionID: "5", Title: "Broken 31Feb25", Slug: "e"},
	}

	got := SelectByTitleDate(descs, time.Date(2025, time.December, 10, 0, 0, 0, 0, time.UTC))
	ids := make([]string, 0, len(got))
	for _, d := range got {
		ids = append(ids, d.ID())
	}
	assert.Equal(t, []string{"1", "4"}, ids)

	got = SelectByTitleDate(descs, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC))
	assert.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID())

	assert.Empty(t, SelectByTitleDate(descs, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)))
}
