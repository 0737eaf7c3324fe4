package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"auctionharvester/internal/models"
)

// Selectors used to open the photo gallery on a detail page
var (
	galleryClicks = []string{
		`a.viewphoto`,
		`a[ng-click*="viewPhotos"]`,
		`.viewphoto`,
		`img.vdp_img`,
		`img[ng-click*="viewPhotos"]`,
	}
	galleryWaitFor = `#imageGallery, .gallery, [data-src-pop]`
	detailWaitFor  = `img, .viewphoto, [ng-click*="viewPhotos"]`
)

// imageSources lists attribute lookups in priority order: full-size gallery,
// lazy-src, thumbnail, then plain img sources
var imageSources = []struct {
	selector string
	attrs    []string
}{
	{`[data-src-pop]`, []string{"data-src-pop"}},
	{`[data-src]`, []string{"data-src"}},
	{`[data-thumb]`, []string{"data-thumb"}},
	{`img`, []string{"src", "data-src", "data-lazy-src"}},
}

// GalleryExtractor pulls image URLs for one vehicle out of its detail page
type GalleryExtractor struct {
	// AssetPattern is the host/path fragment every kept URL must contain
	AssetPattern string
}

// ExtractImageURLs returns the deduplicated, sorted, query-free image URLs
func (g GalleryExtractor) ExtractImageURLs(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{}
	}

	var urls []string
	for _, src := range imageSources {
		doc.Find(src.selector).Each(func(_ int, s *goquery.Selection) {
			for _, attr := range src.attrs {
				val, ok := s.Attr(attr)
				if !ok || val == "" {
					continue
				}
				if u, keep := g.clean(val); keep {
					urls = append(urls, u)
				}
				break
			}
		})
	}
	return models.NormalizeImages(urls)
}

func (g GalleryExtractor) clean(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, g.AssetPattern) {
		return "", false
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return raw, raw != ""
}
