package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionharvester/internal/models"
)

func vehicle(vid, item string, images ...string) models.VehicleRecord {
	v := models.VehicleRecord{
		VID:                vid,
		ItemID:             item,
		RegistrationNumber: "GJ01AB" + item,
		MakeModel:          "Maruti Swift",
		RCStatus:           "With Papers",
	}
	v.SetImages(images)
	return v
}

func TestMergeKeepsPreviousSuccesses(t *testing.T) {
	prev := []models.VehicleRecord{vehicle("A", "1", "a1.jpg", "a2.jpg"), vehicle("B", "2")}

	// fresh data tries to wipe A's images and rename it
	freshA := vehicle("A", "1")
	freshA.MakeModel = "Something Else"
	fresh := []models.VehicleRecord{freshA, vehicle("B", "2", "b1.jpg")}

	out := Merge(prev, fresh)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"a1.jpg", "a2.jpg"}, out[0].Images)
	assert.Equal(t, "Maruti Swift", out[0].MakeModel)
	assert.Equal(t, []string{"b1.jpg"}, out[1].Images)

	assert.True(t, models.SuccessSet(prev).SubsetOf(models.SuccessSet(out)))
	assert.Len(t, models.SuccessSet(out), 2)
}

func TestMergeNeverDropsOrEmptiesImages(t *testing.T) {
	b := vehicle("B", "2")
	b.LastError = "old"
	prev := []models.VehicleRecord{b, vehicle("C", "3")}

	freshB := vehicle("B", "2")
	freshB.LastError = ErrExtractionEmpty.Error()
	freshB.ImageAttempts = 3

	out := Merge(prev, []models.VehicleRecord{freshB, vehicle("D", "4", "d.jpg")})
	require.Len(t, out, 3)
	assert.Equal(t, "B", out[0].VID)
	assert.Empty(t, out[0].Images)
	assert.NotNil(t, out[0].Images)
	assert.Equal(t, 3, out[0].ImageAttempts)
	assert.Equal(t, ErrExtractionEmpty.Error(), out[0].LastError)
	assert.Equal(t, "C", out[1].VID)
	assert.Equal(t, "D", out[2].VID)
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	prev := []models.VehicleRecord{vehicle("A", "1", "a.jpg")}
	out := Merge(prev, nil)
	out[0].Images[0] = "changed.jpg"
	assert.Equal(t, "a.jpg", prev[0].Images[0])
}
