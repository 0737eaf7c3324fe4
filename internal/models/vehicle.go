package models

import (
	"sort"
	"strings"
)

// VehicleKey identifies a vehicle within an auction listing
type VehicleKey struct {
	VID    string
	ItemID string
}

func (k VehicleKey) String() string {
	return k.VID + "_" + k.ItemID
}

// VehicleRecord represents one vehicle row of an auction listing plus its gallery
type VehicleRecord struct {
	VID         string `json:"vid"`
	ItemID      string `json:"item_id"`
	VehicleLink string `json:"vehicle_link,omitempty"`

	// Listing captions
	RegistrationNumber string `json:"registration_number,omitempty"`
	MakeModel          string `json:"make_model,omitempty"`
	ManufacturingYear  string `json:"manufacturing_year,omitempty"` // e.g., "2022"
	Location           string `json:"location,omitempty"`
	PaperStatus        string `json:"paper_status,omitempty"` // e.g., "Without Paper"
	RCStatus           string `json:"rc_status,omitempty"`    // e.g., "With Papers"
	Transmission       string `json:"transmission,omitempty"`
	Ownership          string `json:"ownership,omitempty"`
	FuelType           string `json:"fuel_type,omitempty"`

	// Joined from the listing download table
	YardName     string `json:"yard_name,omitempty"`
	YardLocation string `json:"yard_location,omitempty"`

	Images []string `json:"images"`

	ImageAttempts int    `json:"image_attempts,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// Key returns the identity key of the vehicle
func (v *VehicleRecord) Key() VehicleKey {
	return VehicleKey{VID: v.VID, ItemID: v.ItemID}
}

// HasData reports whether the descriptive fields needed downstream are present
func (v *VehicleRecord) HasData() bool {
	return strings.TrimSpace(v.RegistrationNumber) != "" && strings.TrimSpace(v.MakeModel) != ""
}

// HasImages reports whether at least one gallery image was extracted
func (v *VehicleRecord) HasImages() bool {
	return len(v.Images) > 0
}

// Succeeded reports whether the vehicle belongs to the success set
func (v *VehicleRecord) Succeeded() bool {
	return v.HasData() && v.HasImages()
}

// SetImages stores the URLs deduplicated and sorted
func (v *VehicleRecord) SetImages(urls []string) {
	v.Images = NormalizeImages(urls)
}

// Clone returns a deep copy of the vehicle
func (v VehicleRecord) Clone() VehicleRecord {
	if v.Images != nil {
		images := make([]string, len(v.Images))
		copy(images, v.Images)
		v.Images = images
	}
	return v
}

// NormalizeImages deduplicates the URLs and returns them in sorted order.
// The result is never nil so the field always serializes as an array.
func NormalizeImages(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// KeySet is a set of vehicle identity keys
type KeySet map[VehicleKey]struct{}

// SuccessSet returns the keys of vehicles that have both data and images
func SuccessSet(vehicles []VehicleRecord) KeySet {
	set := make(KeySet)
	for i := range vehicles {
		if vehicles[i].Succeeded() {
			set[vehicles[i].Key()] = struct{}{}
		}
	}
	return set
}

// Has reports whether key is in the set
func (s KeySet) Has(key VehicleKey) bool {
	_, ok := s[key]
	return ok
}

// SubsetOf reports whether every key of s is also in other
func (s KeySet) SubsetOf(other KeySet) bool {
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// Keys returns the keys in a stable order
func (s KeySet) Keys() []VehicleKey {
	keys := make([]VehicleKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
