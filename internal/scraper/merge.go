package scraper

import (
	"auctionharvester/internal/models"
)

// Merge folds fresh vehicle data into the previous list of an auction.
//
// Vehicles of the previous success set are kept untouched. Other previous
// vehicles are overlaid with the fresh copy of the same key: non-empty fresh
// fields win, and fresh images replace old ones only when present. Fresh
// keys not seen before are appended. Nothing previous is ever dropped, so the
// success set of the result is a superset of the previous one.
func Merge(previous, fresh []models.VehicleRecord) []models.VehicleRecord {
	success := models.SuccessSet(previous)

	freshByKey := make(map[models.VehicleKey]models.VehicleRecord, len(fresh))
	var freshOrder []models.VehicleKey
	for _, v := range fresh {
		k := v.Key()
		if _, dup := freshByKey[k]; !dup {
			freshOrder = append(freshOrder, k)
		}
		freshByKey[k] = v
	}

	out := make([]models.VehicleRecord, 0, len(previous)+len(fresh))
	seen := make(map[models.VehicleKey]bool, len(previous))
	for _, prev := range previous {
		k := prev.Key()
		if seen[k] {
			continue
		}
		seen[k] = true

		f, ok := freshByKey[k]
		if !ok || success.Has(k) {
			out = append(out, prev.Clone())
			continue
		}
		out = append(out, overlay(prev, f))
	}

	for _, k := range freshOrder {
		if seen[k] {
			continue
		}
		seen[k] = true
		v := freshByKey[k].Clone()
		if v.Images == nil {
			v.Images = []string{}
		}
		out = append(out, v)
	}
	return out
}

func overlay(prev, fresh models.VehicleRecord) models.VehicleRecord {
	out := prev.Clone()
	pick := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	pick(&out.VehicleLink, fresh.VehicleLink)
	pick(&out.RegistrationNumber, fresh.RegistrationNumber)
	pick(&out.MakeModel, fresh.MakeModel)
	pick(&out.ManufacturingYear, fresh.ManufacturingYear)
	pick(&out.Location, fresh.Location)
	pick(&out.PaperStatus, fresh.PaperStatus)
	pick(&out.RCStatus, fresh.RCStatus)
	pick(&out.Transmission, fresh.Transmission)
	pick(&out.Ownership, fresh.Ownership)
	pick(&out.FuelType, fresh.FuelType)
	pick(&out.YardName, fresh.YardName)
	pick(&out.YardLocation, fresh.YardLocation)

	if fresh.ImageAttempts > out.ImageAttempts {
		out.ImageAttempts = fresh.ImageAttempts
	}
	if fresh.HasImages() {
		out.Images = append([]string(nil), fresh.Images...)
		out.LastError = ""
	} else if fresh.LastError != "" {
		out.LastError = fresh.LastError
	}
	if out.Images == nil {
		out.Images = []string{}
	}
	return out
}
