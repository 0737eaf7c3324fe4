package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DerivedTitleSuffix marks the title of a synthesized complete record
const DerivedTitleSuffix = " [COMPLETE]"

// LooseInt decodes from either a JSON number or a numeric string
type LooseInt int

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", s, err)
		}
		*n = LooseInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = LooseInt(v)
	return nil
}

// LooseString decodes from either a JSON string or a JSON number
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = LooseString(num.String())
	return nil
}

// AuctionDescriptor is the upstream summary of one auction
type AuctionDescriptor struct {
	AuctionID    LooseString `json:"auction_id"`
	Title        string      `json:"title"`
	Slug         string      `json:"slug"`
	VehicleCount LooseInt    `json:"vehicle_count"` // from the upstream summary, not the rendered page
}

// ID returns the auction identifier as a plain string
func (d AuctionDescriptor) ID() string {
	return string(d.AuctionID)
}

// Expected returns the expected vehicle count
func (d AuctionDescriptor) Expected() int {
	return int(d.VehicleCount)
}

var titleDateRe = regexp.MustCompile(`(?i)(\d{1,2})(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)(\d{2})`)

// TitleDate parses the dMMMyy date embedded in titles like
// "Salvage Auction Non Motor J 10Dec25". ok is false when none is present.
func (d AuctionDescriptor) TitleDate() (date time.Time, ok bool) {
	m := titleDateRe.FindStringSubmatch(d.Title)
	if m == nil {
		return time.Time{}, false
	}
	month := strings.ToUpper(m[2][:1]) + strings.ToLower(m[2][1:])
	t, err := time.Parse("2Jan06", m[1]+month+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// AuctionRecord is one auction of the persisted collection
type AuctionRecord struct {
	AuctionDescriptor

	Vehicles []VehicleRecord `json:"vehicles"`
	Status   Status          `json:"status,omitempty"`
	Summary  string          `json:"summary,omitempty"`

	LoadedCount     int `json:"loaded_count"`
	FilteredCount   int `json:"filtered_count"`
	WithDataCount   int `json:"with_data_count"`
	WithImagesCount int `json:"with_images_count"`

	FetchFailed bool   `json:"fetch_failed,omitempty"`
	FetchError  string `json:"fetch_error,omitempty"`
	RetryRounds int    `json:"retry_rounds,omitempty"`

	// Derived marks a synthesized record restricted to the success set
	Derived bool `json:"derived,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NewAuctionRecord creates an unprocessed record from its descriptor
func NewAuctionRecord(d AuctionDescriptor) *AuctionRecord {
	return &AuctionRecord{
		AuctionDescriptor: d,
		Vehicles:          []VehicleRecord{},
	}
}

// Processed reports whether the record went through at least one pass
func (a *AuctionRecord) Processed() bool {
	return a.Status != ""
}

// Counts derives the status table inputs from the record
func (a *AuctionRecord) Counts() Counts {
	c := Counts{
		Expected:      a.Expected(),
		Loaded:        a.LoadedCount,
		Filtered:      len(a.Vehicles),
		ListingFailed: a.FetchFailed,
	}
	for i := range a.Vehicles {
		if a.Vehicles[i].HasData() {
			c.WithData++
		}
		if a.Vehicles[i].HasImages() {
			c.WithImages++
		}
	}
	return c
}

// Recompute refreshes the counters, status and summary from the vehicle list
// and the loaded count. It is the only place the status is assigned.
func (a *AuctionRecord) Recompute() {
	c := a.Counts()
	a.FilteredCount = c.Filtered
	a.WithDataCount = c.WithData
	a.WithImagesCount = c.WithImages
	a.Status = ComputeStatus(c)
	a.Summary = Summary(a.Status, c)
}

// SuccessSet returns the keys of vehicles with data and images
func (a *AuctionRecord) SuccessSet() KeySet {
	return SuccessSet(a.Vehicles)
}

// Clone returns a deep copy of the record
func (a *AuctionRecord) Clone() *AuctionRecord {
	out := *a
	out.Vehicles = make([]VehicleRecord, len(a.Vehicles))
	for i := range a.Vehicles {
		out.Vehicles[i] = a.Vehicles[i].Clone()
	}
	return &out
}

// CompleteDerivative builds a new sibling record holding only the success set.
// The receiver is not modified. ok is false when there is nothing to derive.
func (a *AuctionRecord) CompleteDerivative(now time.Time) (derived *AuctionRecord, ok bool) {
	var vehicles []VehicleRecord
	for i := range a.Vehicles {
		if a.Vehicles[i].Succeeded() {
			vehicles = append(vehicles, a.Vehicles[i].Clone())
		}
	}
	if len(vehicles) == 0 {
		return nil, false
	}

	derived = &AuctionRecord{
		AuctionDescriptor: a.AuctionDescriptor,
		Vehicles:          vehicles,
		LoadedCount:       a.LoadedCount,
		RetryRounds:       a.RetryRounds,
		Derived:           true,
		UpdatedAt:         now,
	}
	derived.Title = a.Title + DerivedTitleSuffix
	derived.Recompute()
	// Loaded can be zero on a record restored from an older document
	derived.Status = StatusComplete
	derived.Summary = Summary(StatusComplete, derived.Counts())
	return derived, true
}

// Collection is the ordered list of auction records persisted as one document
type Collection []*AuctionRecord

// Find returns the original (non-derived) record for an auction id
func (c Collection) Find(auctionID string) *AuctionRecord {
	for _, a := range c {
		if !a.Derived && a.ID() == auctionID {
			return a
		}
	}
	return nil
}

// HasDerivative reports whether a derivative was already appended for the auction
func (c Collection) HasDerivative(auctionID string) bool {
	for _, a := range c {
		if a.Derived && a.ID() == auctionID {
			return true
		}
	}
	return false
}

// Clone deep copies every record
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i, a := range c {
		out[i] = a.Clone()
	}
	return out
}
