package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"auctionharvester/internal/logger"
	"auctionharvester/internal/models"
)

const testBase = "https://auctions.example.com"
const testAssets = "auctionscdn.cardekho.com/auctionuploads/"

type response struct {
	html string
	err  error
}

// scriptedRenderer replays queued responses per URL; the last one repeats
type scriptedRenderer struct {
	mu      sync.Mutex
	scripts map[string][]response
	calls   map[string]int
}

func newScriptedRenderer() *scriptedRenderer {
	return &scriptedRenderer{scripts: map[string][]response{}, calls: map[string]int{}}
}

func (s *scriptedRenderer) on(url string, rs ...response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[url] = append(s.scripts[url], rs...)
}

func (s *scriptedRenderer) Render(_ context.Context, req RenderRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[req.URL]++
	q := s.scripts[req.URL]
	if len(q) == 0 {
		return "", NewFailure(req.URL, fmt.Errorf("no script for %s", req.URL))
	}
	r := q[0]
	if len(q) > 1 {
		s.scripts[req.URL] = q[1:]
	}
	return r.html, r.err
}

func (s *scriptedRenderer) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

type memStore struct {
	coll  models.Collection
	saves int
}

func (m *memStore) Load(context.Context) (models.Collection, error) {
	return m.coll.Clone(), nil
}

func (m *memStore) Save(_ context.Context, c models.Collection) error {
	m.coll = c.Clone()
	m.saves++
	return nil
}

type stub struct {
	vid, item, reg, model, rc string
}

func row(s stub) string {
	return fmt.Sprintf(`<tr id="auction_item_%s"><td>
  <a href="#/auction/vehicleDetail/%s/%s">%s</a>
  <ul>
    <li title="Registration Number">• %s</li>
    <li title="Mfg Year">•  Mar 2015 </li>
    <li title="RC Available">• RC: %s</li>
    <li title="Fuel Type">• Petrol</li>
  </ul>
</td></tr>`, s.item, s.vid, s.item, s.model, s.reg, s.rc)
}

func listingHTML(stubs ...stub) string {
	var b strings.Builder
	b.WriteString(`<html><body><table>`)
	for _, s := range stubs {
		b.WriteString(row(s))
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func galleryHTML(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="imageGallery">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<a data-src-pop="https://%simg%d.jpg?w=800"></a>`, testAssets, i)
	}
	b.WriteString(`<img src="https://other.example.com/logo.png"></div></body></html>`)
	return b.String()
}

func testOptions() Options {
	return Options{
		BaseURL:        testBase,
		Credentials:    "session=abc",
		Filter:         Filter{RegionPrefix: "GJ", StatusPhrase: "with papers"},
		Gallery:        GalleryExtractor{AssetPattern: testAssets},
		RenderAttempts: 1,
		ImageAttempts:  2,
		SmartRounds:    3,
	}
}

func newTestProcessor(t *testing.T, r Renderer, opts Options) *Processor {
	t.Helper()
	return NewProcessor(r, opts, logger.NewNop())
}

func detailURL(vid, item string) string {
	return testBase + "/#/auction/vehicleDetail/" + vid + "/" + item
}

func listingURL(slug string) string {
	return testBase + "/#/auctionDetail/" + slug
}

func ok(html string) response { return response{html: html} }

func fail(err error) response { return response{err: err} }
