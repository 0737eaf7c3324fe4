package validation

import (
	"testing"

	"auctionharvester/internal/models"
)

func TestValidateDescriptor(t *testing.T) {
	cases := []struct {
		name    string
		desc    models.AuctionDescriptor
		wantErr string
	}{
		{"missingID", models.AuctionDescriptor{Slug: "x"}, "auction id is required"},
		{"missingSlug", models.AuctionDescriptor{AuctionID: "12", Slug: "  "}, "auction 12 has no slug"},
		{"badSlug", models.AuctionDescriptor{AuctionID: "12", Slug: "a b<c>"}, "auction 12 slug contains invalid characters"},
		{"negativeCount", models.AuctionDescriptor{AuctionID: "12", Slug: "ok", VehicleCount: -1}, "auction 12 has a negative vehicle count"},
		{"valid", models.AuctionDescriptor{AuctionID: "12", Slug: "gujarat-psu/176639", VehicleCount: 4}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDescriptor(tc.desc)
			if tc.wantErr == "" && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tc.wantErr != "" {
				if err == nil || err.Error() != tc.wantErr {
					t.Fatalf("expected error %q, got %v", tc.wantErr, err)
				}
			}
		})
	}
}

func TestValidateAuctionID(t *testing.T) {
	if err := ValidateAuctionID("176639"); err != nil {
		t.Fatalf("expected valid id, got %v", err)
	}
	for _, id := range []string{"", "../etc", "id with space"} {
		if err := ValidateAuctionID(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}

func TestValidateStatus(t *testing.T) {
	for _, s := range []string{"", "complete", "partial", "no_match", "timeout", "failed"} {
		if err := ValidateStatus(s); err != nil {
			t.Fatalf("expected %q to be accepted: %v", s, err)
		}
	}
	if err := ValidateStatus("COMPLETE"); err == nil {
		t.Fatal("expected upper-case status to be rejected")
	}
}

func TestSanitizeRegistration(t *testing.T) {
	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{"gj-01 ab 1234", "GJ_01_AB_1234", false},
		{" GJ05XY0001 ", "GJ05XY0001", false},
		{"GJ1", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := SanitizeRegistration(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("SanitizeRegistration(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}
