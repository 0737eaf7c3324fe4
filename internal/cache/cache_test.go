package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"auctionharvester/internal/models"
)

type countingLoader struct {
	calls int
	err   error
	coll  models.Collection
}

func (l *countingLoader) Load(context.Context) (models.Collection, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.coll, nil
}

func newCache(l Loader, expiry time.Duration) (*CollectionCache, *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(l, expiry)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCacheServesUntilExpiry(t *testing.T) {
	l := &countingLoader{coll: models.Collection{models.NewAuctionRecord(models.AuctionDescriptor{AuctionID: "1"})}}
	c, now := newCache(l, time.Minute)

	if !c.IsExpired() {
		t.Fatalf("expected empty cache to be expired")
	}
	if _, ok := c.Age(); ok {
		t.Fatalf("expected no age before first load")
	}

	for i := 0; i < 3; i++ {
		coll, err := c.Get(context.Background())
		if err != nil || len(coll) != 1 {
			t.Fatalf("unexpected result: %v %v", coll, err)
		}
	}
	if l.calls != 1 {
		t.Fatalf("expected 1 load, got %d", l.calls)
	}

	*now = now.Add(2 * time.Minute)
	if !c.IsExpired() {
		t.Fatalf("expected cache to expire")
	}
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if l.calls != 2 {
		t.Fatalf("expected reload, got %d loads", l.calls)
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	l := &countingLoader{coll: models.Collection{models.NewAuctionRecord(models.AuctionDescriptor{AuctionID: "1", Title: "orig"})}}
	c, _ := newCache(l, time.Minute)

	first, _ := c.Get(context.Background())
	first[0].Title = "changed"
	second, _ := c.Get(context.Background())
	if second[0].Title != "orig" {
		t.Fatalf("cache leaked a mutable reference: %q", second[0].Title)
	}
}

func TestCacheInvalidateAndErrors(t *testing.T) {
	l := &countingLoader{coll: models.Collection{}}
	c, _ := newCache(l, time.Hour)

	if _, err := c.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	l.err = errors.New("disk gone")
	if _, err := c.Get(context.Background()); err == nil {
		t.Fatalf("expected load error after invalidate")
	}
	if l.calls != 2 {
		t.Fatalf("expected 2 loads, got %d", l.calls)
	}
}
