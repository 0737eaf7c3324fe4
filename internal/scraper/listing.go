package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"auctionharvester/internal/models"
)

const (
	rowSelector        = `tr[id^="auction_item_"]`
	detailLinkSelector = `a[href*="#/auction/vehicleDetail/"]`
	yardRowSelector    = `tr[ng-repeat*="det in auctionDetailDownload"]`
)

var (
	itemIDRegex     = regexp.MustCompile(`auction_item_(\d+)`)
	detailLinkRegex = regexp.MustCompile(`#/auction/vehicleDetail/([^/]+)/(\d+)`)
	vidCaptionRegex = regexp.MustCompile(`VID:\s*([A-Z0-9]+)`)
	bulletRegex     = regexp.MustCompile(`^[•\s]+`)
	rcPrefixRegex   = regexp.MustCompile(`(?i)^RC:\s*`)
	yearRegex       = regexp.MustCompile(`\d{4}`)
)

// Download table columns
const (
	yardColRegistration = 1
	yardColName         = 11
	yardColLocation     = 12
)

// ExtractVehicles parses a rendered listing page into vehicle stubs.
// Rows are keyed by the auction_item_ marker; when no row matches, every
// detail-page anchor on the page is used instead.
func ExtractVehicles(html string) ([]models.VehicleRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var vehicles []models.VehicleRecord
	seen := make(map[models.VehicleKey]bool)

	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		v, ok := parseRow(row)
		if !ok || seen[v.Key()] {
			return
		}
		seen[v.Key()] = true
		vehicles = append(vehicles, v)
	})

	if len(vehicles) == 0 {
		doc.Find(detailLinkSelector).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			m := detailLinkRegex.FindStringSubmatch(href)
			if m == nil {
				return
			}
			v := models.VehicleRecord{VID: m[1], ItemID: m[2], VehicleLink: href, Images: []string{}}
			if seen[v.Key()] {
				return
			}
			seen[v.Key()] = true
			vehicles = append(vehicles, v)
		})
		return vehicles, nil
	}

	joinYardDetails(doc, vehicles)
	return vehicles, nil
}

func parseRow(row *goquery.Selection) (models.VehicleRecord, bool) {
	id, _ := row.Attr("id")
	m := itemIDRegex.FindStringSubmatch(id)
	if m == nil {
		return models.VehicleRecord{}, false
	}
	v := models.VehicleRecord{ItemID: m[1], Images: []string{}}

	link := row.Find(detailLinkSelector).First()
	if href, ok := link.Attr("href"); ok {
		if lm := detailLinkRegex.FindStringSubmatch(href); lm != nil {
			v.VID = lm[1]
			v.VehicleLink = href
		}
		v.MakeModel = strings.TrimSpace(link.Text())
		if v.MakeModel == "" {
			v.MakeModel = strings.TrimSpace(link.AttrOr("title", ""))
		}
	}

	if v.VID == "" {
		row.Find(`div[class*="title"]`).EachWithBreak(func(_ int, div *goquery.Selection) bool {
			if vm := vidCaptionRegex.FindStringSubmatch(div.Text()); vm != nil {
				v.VID = vm[1]
				return false
			}
			return true
		})
	}
	if v.VID == "" {
		return models.VehicleRecord{}, false
	}

	v.RegistrationNumber = strings.TrimSpace(caption(row, "Registration Number"))
	v.ManufacturingYear = NormalizeYear(caption(row, "Mfg Year"))
	v.Location = caption(row, "Location")
	v.PaperStatus = caption(row, "Scrap/Without Paper")
	v.RCStatus = strings.TrimSpace(rcPrefixRegex.ReplaceAllString(caption(row, "RC Available"), ""))
	v.Transmission = caption(row, "Transmission")
	v.Ownership = caption(row, "Ownership")
	v.FuelType = caption(row, "Fuel Type")
	return v, true
}

// caption reads the text of the labelled list item with the bullet removed
func caption(row *goquery.Selection, title string) string {
	li := row.Find(fmt.Sprintf(`li[title=%q]`, title)).First()
	if li.Length() == 0 {
		return ""
	}
	return cleanText(li.Text())
}

func cleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(bulletRegex.ReplaceAllString(s, ""))
}

// NormalizeYear collapses whitespace and keeps only the 4-digit year when
// one is present
func NormalizeYear(raw string) string {
	cleaned := cleanText(raw)
	if y := yearRegex.FindString(cleaned); y != "" {
		return y
	}
	return cleaned
}

// joinYardDetails copies yard name/location from the download table,
// matched by registration number
func joinYardDetails(doc *goquery.Document, vehicles []models.VehicleRecord) {
	type yard struct{ name, location string }
	yards := make(map[string]yard)

	doc.Find(yardRowSelector).Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td.ng-binding")
		if tds.Length() <= yardColLocation {
			return
		}
		reg := strings.TrimSpace(tds.Eq(yardColRegistration).Text())
		if reg == "" {
			return
		}
		yards[reg] = yard{
			name:     strings.TrimSpace(tds.Eq(yardColName).Text()),
			location: strings.TrimSpace(tds.Eq(yardColLocation).Text()),
		}
	})

	for i := range vehicles {
		if y, ok := yards[vehicles[i].RegistrationNumber]; ok {
			vehicles[i].YardName = y.name
			vehicles[i].YardLocation = y.location
		}
	}
}

// hasListingMarkers reports whether rendered HTML looks like a listing page
func hasListingMarkers(html string) bool {
	return strings.Contains(html, "auction_item_") ||
		strings.Contains(html, "#/auction/vehicleDetail/") ||
		(strings.Contains(html, "ng-repeat") && strings.Contains(html, "auctionDetail"))
}
