package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/fetch"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

func testCollector(st store.Store) *Collector {
	cfg := config.FetchConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "veridex-test",
		MaxBodyBytes: 1 << 20,
		MaxAttempts:  1,
		BackoffBase:  time.Millisecond,
		RatePerHost:  1000,
		RateBurst:    1000,
		CacheTTL:     time.Millisecond, // effectively disabled between calls
	}
	return NewCollector(fetch.New(cfg), st, logger.New("test", "error"))
}

func TestCollect_PublisherPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><script>ignored()</script></head>
			<body><nav>menu</nav><p>BTC will reach $150,000 by the end of 2026.</p><footer>contact</footer></body></html>`))
	}))
	defer srv.Close()

	st := store.NewMemory()
	c := testCollector(st)
	src := model.Source{ID: "src-1", Kind: model.SourcePublisher, URL: srv.URL}

	items, err := c.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	text := items[0].Text
	if text == "" || !strings.Contains(text, "BTC will reach") {
		t.Errorf("Expected visible text extracted, got %q", text)
	}
	if strings.Contains(text, "ignored()") || strings.Contains(text, "menu") || strings.Contains(text, "contact") {
		t.Errorf("Expected script/nav/footer stripped, got %q", text)
	}

	if _, ok := st.Watermark(src.ID); !ok {
		t.Error("Expected watermark advanced after collection")
	}
}

func TestCollect_UnchangedPageNotReEmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>The SEC charged the exchange with fraud today.</p></body></html>`))
	}))
	defer srv.Close()

	st := store.NewMemory()
	c := testCollector(st)
	src := model.Source{ID: "src-1", Kind: model.SourcePublisher, URL: srv.URL}

	first, err := c.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	time.Sleep(5 * time.Millisecond) // let the fetch cache entry lapse
	second, err := c.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("Expected no error on second pass, got %v", err)
	}
	if len(first) != 1 || len(second) != 0 {
		t.Errorf("Expected 1 then 0 items, got %d then %d", len(first), len(second))
	}
}

func TestCollect_RegulatorFeed(t *testing.T) {
	feed := `[
		{"id": "rel-1", "title": "SEC charged Exchange Omega", "body": "Enforcement action filed.", "url": "https://sec.gov/rel-1", "published_at": "2026-01-10T00:00:00Z"},
		{"id": "rel-2", "title": "Statement on digital assets", "url": "https://sec.gov/rel-2", "published_at": "2026-01-12T00:00:00Z"},
		{"title": "malformed entry without id or url"}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	st := store.NewMemory()
	c := testCollector(st)
	src := model.Source{ID: "reg-1", Kind: model.SourceRegulator, URL: srv.URL}

	items, err := c.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items (malformed entry dropped), got %d", len(items))
	}
	if items[0].ExternalID != "rel-1" {
		t.Errorf("Expected source-provided id kept, got %q", items[0].ExternalID)
	}
	if !strings.Contains(items[0].Text, "Enforcement action filed") {
		t.Errorf("Expected title and body joined, got %q", items[0].Text)
	}
}

func TestCollect_WatermarkFiltersOldItems(t *testing.T) {
	feed := `[
		{"id": "old", "title": "Old news about enforcement", "url": "https://sec.gov/old", "published_at": "2026-01-01T00:00:00Z"},
		{"id": "new", "title": "Fresh enforcement action", "url": "https://sec.gov/new", "published_at": "2026-02-01T00:00:00Z"}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	st := store.NewMemory()
	_ = st.SetWatermark("reg-1", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	c := testCollector(st)
	src := model.Source{ID: "reg-1", Kind: model.SourceRegulator, URL: srv.URL}

	items, err := c.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 1 || items[0].ExternalID != "new" {
		t.Fatalf("Expected only the post-watermark item, got %v", items)
	}
}

func TestCollect_SocialTimeline(t *testing.T) {
	timeline := `[
		{"id": "p1", "text": "SOL could reach $500 by June 2026", "url": "https://social.example/p1", "created_at": "2026-01-10T00:00:00Z"},
		{"id": "p2", "text": ""}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(timeline))
	}))
	defer srv.Close()

	st := store.NewMemory()
	c := testCollector(st)
	src := model.Source{ID: "cr-1", Kind: model.SourceSocial, URL: srv.URL}

	items, err := c.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item (empty post dropped), got %d", len(items))
	}
}

func TestCollect_MalformedFeedFailsSourceOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not json"))
	}))
	defer srv.Close()

	st := store.NewMemory()
	c := testCollector(st)
	src := model.Source{ID: "reg-1", Kind: model.SourceRegulator, URL: srv.URL}

	if _, err := c.Collect(context.Background(), src); err == nil {
		t.Fatal("Expected a parse error")
	}
	if _, ok := st.Watermark(src.ID); ok {
		t.Error("Expected watermark untouched after a failed parse")
	}
}
