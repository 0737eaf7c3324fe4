package scraper

import (
	"strings"
	"testing"
)

func TestExtractImageURLs(t *testing.T) {
	g := GalleryExtractor{AssetPattern: testAssets}
	html := `<div>
	  <a data-src-pop="https://` + testAssets + `b.jpg?w=1200"></a>
	  <img data-src="https://` + testAssets + `a.jpg?w=300">
	  <div data-thumb="https://` + testAssets + `b.jpg"></div>
	  <img src="https://cdn.elsewhere.com/banner.jpg">
	</div>`

	got := g.ExtractImageURLs(html)
	want := []string{"https://" + testAssets + "a.jpg", "https://" + testAssets + "b.jpg"}
	if len(got) != len(want) {
		t.Fatalf("expected %d urls, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url %d: got %q, want %q", i, got[i], want[i])
		}
		if strings.Contains(got[i], "?") {
			t.Errorf("url %q still carries a query string", got[i])
		}
	}
}

func TestExtractImageURLsIsIdempotent(t *testing.T) {
	g := GalleryExtractor{AssetPattern: testAssets}
	html := galleryHTML(4)

	first := g.ExtractImageURLs(html)
	second := g.ExtractImageURLs(html)
	if len(first) != 4 {
		t.Fatalf("expected 4 urls, got %v", first)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("extraction not stable: %v vs %v", first, second)
		}
	}
}

func TestExtractImageURLsEmpty(t *testing.T) {
	g := GalleryExtractor{AssetPattern: testAssets}
	got := g.ExtractImageURLs(`<html><body><p>no photos</p></body></html>`)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
