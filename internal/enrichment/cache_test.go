package enrichment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubTitles struct {
	details TitleDetails
	err     error
	calls   atomic.Int32
	delay   time.Duration
}

func (s *stubTitles) Title(context.Context, string) (TitleDetails, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return TitleDetails{}, s.err
	}
	return s.details, nil
}

func TestCachingTitlesLookup(t *testing.T) {
	base := &stubTitles{details: TitleDetails{Title: "Avatar"}}
	cache := NewCachingTitles(base, 8, time.Minute)
	ctx := context.Background()

	details, err := cache.Title(ctx, "tt0499549")
	if err != nil {
		t.Fatalf("title: %v", err)
	}
	if details.Title != "Avatar" {
		t.Fatalf("unexpected details: %+v", details)
	}

	if _, err := cache.Title(ctx, "tt0499549"); err != nil {
		t.Fatalf("title: %v", err)
	}
	if got := base.calls.Load(); got != 1 {
		t.Fatalf("expected cached result got %d calls", got)
	}
}

func TestCachingTitlesDoesNotCacheErrors(t *testing.T) {
	cache := NewCachingTitles(nil, 8, time.Minute)
	if _, err := cache.Title(context.Background(), "tt1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable got %v", err)
	}

	base := &stubTitles{err: ErrTitleNotFound}
	cache = NewCachingTitles(base, 8, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := cache.Title(context.Background(), "tt1"); !errors.Is(err, ErrTitleNotFound) {
			t.Fatalf("expected title not found got %v", err)
		}
	}
	if got := base.calls.Load(); got != 2 {
		t.Fatalf("expected errors to bypass the cache, got %d calls", got)
	}
}

func TestCachingTitlesExpiry(t *testing.T) {
	base := &stubTitles{details: TitleDetails{Title: "Avatar"}}
	cache := NewCachingTitles(base, 8, 5*time.Millisecond)

	if _, err := cache.Title(context.Background(), "tt1"); err != nil {
		t.Fatalf("title: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := cache.Title(context.Background(), "tt1"); err != nil {
		t.Fatalf("title: %v", err)
	}
	if got := base.calls.Load(); got != 2 {
		t.Fatalf("expected cache miss after expiry got %d calls", got)
	}
}

func TestCachingTitlesCollapsesConcurrentLookups(t *testing.T) {
	base := &stubTitles{details: TitleDetails{Title: "Avatar"}, delay: 50 * time.Millisecond}
	cache := NewCachingTitles(base, 8, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Title(context.Background(), "tt0499549"); err != nil {
				t.Errorf("title: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := base.calls.Load(); got != 1 {
		t.Fatalf("expected a single upstream call got %d", got)
	}
}
