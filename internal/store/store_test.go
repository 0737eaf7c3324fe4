package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"auctionharvester/internal/models"
)

func sampleCollection() models.Collection {
	rec := models.NewAuctionRecord(models.AuctionDescriptor{
		AuctionID: "176639", Title: "Gujarat PSU", Slug: "gujarat-psu", VehicleCount: 2,
	})
	v := models.VehicleRecord{VID: "A", ItemID: "1", RegistrationNumber: "GJ01AA0001", MakeModel: "Swift", RCStatus: "With Papers"}
	v.SetImages([]string{"https://cdn/x.jpg"})
	rec.Vehicles = []models.VehicleRecord{v, {VID: "B", ItemID: "2", Images: []string{}}}
	rec.LoadedCount = 2
	rec.UpdatedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec.Recompute()
	return models.Collection{rec}
}

func TestJSONStoreMissingFileIsEmpty(t *testing.T) {
	s := NewJSONStore(filepath.Join(t.TempDir(), "none.json"))
	coll, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if coll == nil || len(coll) != 0 {
		t.Fatalf("expected empty collection, got %#v", coll)
	}
}

func TestJSONStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auctions.json")
	s := NewJSONStore(path)
	ctx := context.Background()

	if err := s.Save(ctx, sampleCollection()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	coll, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(coll) != 1 {
		t.Fatalf("expected 1 record, got %d", len(coll))
	}
	rec := coll[0]
	if rec.ID() != "176639" || rec.Status != models.StatusPartial || len(rec.Vehicles) != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(raw), `"images": []`) {
		t.Fatalf("empty image list should serialize as an array:\n%s", raw)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestJSONStoreReadsDescriptorsAsUnprocessed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.json")
	doc := `[{"auction_id": 42, "title": "Bank Auction", "slug": "bank", "vehicle_count": "7"}]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	coll, err := NewJSONStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(coll) != 1 || coll[0].Processed() || coll[0].Expected() != 7 || coll[0].Vehicles == nil {
		t.Fatalf("unexpected record: %+v", coll[0])
	}

	descs, err := ReadDescriptors(path)
	if err != nil {
		t.Fatalf("read descriptors: %v", err)
	}
	if len(descs) != 1 || descs[0].ID() != "42" || descs[0].Slug != "bank" {
		t.Fatalf("unexpected descriptors: %+v", descs)
	}
}

func TestJSONStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewJSONStore(path).Load(context.Background()); err == nil {
		t.Fatal("expected error for corrupt document")
	}
}

func TestJSONStoreDropsNullEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.json")
	doc := `[{"auction_id": "1", "title": "Bank", "slug": "bank", "vehicle_count": 3}, null]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	coll, err := NewJSONStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(coll) != 1 || coll[0].ID() != "1" {
		t.Fatalf("expected the null entry to be dropped, got %+v", coll)
	}
	if coll.Find("2") != nil {
		t.Fatal("unexpected record for unknown id")
	}
}

func TestJSONStoreFailedSaveKeepsPreviousDocument(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "auctions.json")
	s := NewJSONStore(path)
	ctx := context.Background()

	if err := s.Save(ctx, sampleCollection()); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	changed := sampleCollection()
	changed[0].Title = "Second Version"
	if err := s.Save(ctx, changed); err == nil {
		t.Fatal("expected save into a read-only directory to fail")
	}

	coll, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load after failed save: %v", err)
	}
	if len(coll) != 1 || coll[0].Title != "Gujarat PSU" {
		t.Fatalf("expected the first version, got %+v", coll)
	}
}

func TestJSONStoreCancelledSaveWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auctions.json")
	s := NewJSONStore(path)
	if err := s.Save(context.Background(), sampleCollection()); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, models.Collection{}); err == nil {
		t.Fatal("expected cancelled save to fail")
	}

	coll, err := s.Load(context.Background())
	if err != nil || len(coll) != 1 {
		t.Fatalf("expected the first version to survive, got %v (%v)", coll, err)
	}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreSnapshots(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	coll, err := s.Load(ctx)
	if err != nil || len(coll) != 0 {
		t.Fatalf("expected empty collection, got %v (%v)", coll, err)
	}

	first := sampleCollection()
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	second := sampleCollection()
	second[0].Vehicles[1].SetImages([]string{"https://cdn/y.jpg"})
	second[0].Vehicles[1].RegistrationNumber = "GJ01AA0002"
	second[0].Vehicles[1].MakeModel = "City"
	second[0].Recompute()
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	latest, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if latest[0].Status != models.StatusComplete {
		t.Fatalf("expected latest snapshot, got status %s", latest[0].Status)
	}

	snaps, err := s.Snapshots(ctx, 0)
	if err != nil {
		t.Fatalf("snapshots failed: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID < snaps[1].ID {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}

	removed, err := s.Prune(ctx, 1)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 pruned snapshot, got %d (%v)", removed, err)
	}
}

func TestSQLiteStoreDropsNullEntries(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	doc := `[null, {"auction_id": "9", "title": "Fleet", "slug": "fleet", "vehicle_count": 1}]`
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_snapshots (auctions, document, created_at) VALUES (?, ?, ?)`,
		2, doc, time.Now().UTC()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	coll, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(coll) != 1 || coll[0].ID() != "9" || coll[0].Vehicles == nil {
		t.Fatalf("unexpected collection: %+v", coll)
	}
}

func TestSQLiteImportJSONRunsOnce(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	jsonPath := filepath.Join(t.TempDir(), "auctions.json")
	if err := NewJSONStore(jsonPath).Save(ctx, sampleCollection()); err != nil {
		t.Fatalf("seed json: %v", err)
	}

	imported, err := s.ImportJSON(ctx, jsonPath)
	if err != nil || !imported {
		t.Fatalf("first import: imported=%v err=%v", imported, err)
	}
	imported, err = s.ImportJSON(ctx, jsonPath)
	if err != nil || imported {
		t.Fatalf("second import should be skipped: imported=%v err=%v", imported, err)
	}

	snaps, _ := s.Snapshots(ctx, 0)
	if len(snaps) != 1 {
		t.Fatalf("expected a single imported snapshot, got %d", len(snaps))
	}
}

func TestMemoryStoreKeepsSnapshots(t *testing.T) {
	m := NewMemoryStore(nil)
	ctx := context.Background()

	coll := sampleCollection()
	if err := m.Save(ctx, coll); err != nil {
		t.Fatal(err)
	}
	coll[0].Title = "mutated"
	if err := m.Save(ctx, coll); err != nil {
		t.Fatal(err)
	}

	snaps := m.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0][0].Title != "Gujarat PSU" {
		t.Fatalf("snapshot aliased caller data: %q", snaps[0][0].Title)
	}
	latest, _ := m.Load(ctx)
	if latest[0].Title != "mutated" {
		t.Fatalf("expected latest version, got %q", latest[0].Title)
	}
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(BackendJSON, filepath.Join(dir, "a.json"), "")
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	if _, ok := s.(*JSONStore); !ok {
		t.Fatalf("expected JSONStore, got %T", s)
	}
	if _, err := Open("redis", "", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestWriteFailedLedgerTracksCurrentFailures(t *testing.T) {
	failed := models.NewAuctionRecord(models.AuctionDescriptor{AuctionID: "7", Title: "Bank 10Dec25", Slug: "bank", VehicleCount: 4})
	failed.FetchFailed = true
	failed.FetchError = "render failure rendering https://x/bank"
	failed.Recompute()

	coll := append(sampleCollection(), failed)
	path := filepath.Join(t.TempDir(), "downloads", "failed.json")

	n, err := WriteFailedLedger(path, coll)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 failed auction, got %d (%v)", n, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	for _, want := range []string{`"auction_id": "7"`, `"slug": "bank"`, `"vehicle_count": 4`, `"index": 2`, `render failure`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("ledger missing %s:\n%s", want, raw)
		}
	}

	// A later round recovers the auction
	failed.FetchFailed = false
	failed.FetchError = ""
	failed.LoadedCount = 4
	failed.Recompute()
	if n, err := WriteFailedLedger(path, coll); err != nil || n != 0 {
		t.Fatalf("expected empty ledger, got %d (%v)", n, err)
	}
	raw, _ = os.ReadFile(path)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected empty array, got %s", raw)
	}
}
