package odata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"
)

// pageServer serves a fixed record set through $top/$skip windowing and
// records every query it sees.
type pageServer struct {
	mu      sync.Mutex
	records []Record
	queries []url.Values
}

func newPageServer(n int) *pageServer {
	s := &pageServer{}
	for i := 0; i < n; i++ {
		s.records = append(s.records, Record{"Id": fmt.Sprintf("product-%d", i)})
	}
	return s
}

func (s *pageServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()

		q := r.URL.Query()
		top, _ := strconv.Atoi(q.Get("$top"))
		skip, _ := strconv.Atoi(q.Get("$skip"))

		end := skip + top
		if end > len(s.records) {
			end = len(s.records)
		}
		var window []Record
		if skip < len(s.records) {
			window = s.records[skip:end]
		}

		resp := map[string]any{"value": window}
		if q.Get("$count") == "true" {
			resp["@odata.count"] = len(s.records)
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func (s *pageServer) query(i int) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[i]
}

func (s *pageServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func testFilter(top int, wantCount bool) *CompiledFilter {
	return &CompiledFilter{
		Mode:      ModeProduct,
		Endpoint:  "Products",
		Clauses:   []string{"Collection/Name eq 'SENTINEL-1'"},
		OrderBy:   DefaultOrderBy,
		Top:       top,
		WantCount: wantCount,
		Expand:    true,
	}
}

func TestExecutePaginates(t *testing.T) {
	backend := newPageServer(5)
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second).WithPageCap(2)

	pages, err := client.Execute(context.Background(), testFilter(5, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if backend.requestCount() != 3 {
		t.Fatalf("expected 3 requests, got %d", backend.requestCount())
	}

	// Page windows: cap-sized until the remaining budget is smaller.
	wantTops := []string{"2", "2", "1"}
	wantSkips := []string{"", "2", "4"}
	for i := range wantTops {
		q := backend.query(i)
		if got := q.Get("$top"); got != wantTops[i] {
			t.Errorf("request %d: expected $top=%s, got %q", i, wantTops[i], got)
		}
		if got := q.Get("$skip"); got != wantSkips[i] {
			t.Errorf("request %d: expected $skip=%q, got %q", i, wantSkips[i], got)
		}
	}

	// Count is requested on the first page only.
	if backend.query(0).Get("$count") != "true" {
		t.Error("expected $count=true on the first request")
	}
	if backend.query(1).Has("$count") {
		t.Error("expected no $count on subsequent requests")
	}
	if pages[0].Count == nil || *pages[0].Count != 5 {
		t.Errorf("expected count 5 on first page, got %v", pages[0].Count)
	}

	// Skip offsets track observed record counts.
	if pages[1].Skip != 2 || pages[2].Skip != 4 {
		t.Errorf("unexpected skip offsets: %d, %d", pages[1].Skip, pages[2].Skip)
	}
}

func TestExecuteStopsOnShortPage(t *testing.T) {
	backend := newPageServer(3)
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second).WithPageCap(10)

	pages, err := client.Execute(context.Background(), testFilter(100, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if backend.requestCount() != 1 {
		t.Errorf("expected 1 request after short page, got %d", backend.requestCount())
	}
	if len(pages[0].Records) != 3 {
		t.Errorf("expected 3 records, got %d", len(pages[0].Records))
	}
}

func TestExecuteSendsFilterAndExpand(t *testing.T) {
	backend := newPageServer(1)
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	if _, err := client.Execute(context.Background(), testFilter(10, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := backend.query(0)
	if got := q.Get("$filter"); got != "Collection/Name eq 'SENTINEL-1'" {
		t.Errorf("unexpected $filter: %q", got)
	}
	if got := q.Get("$orderby"); got != DefaultOrderBy {
		t.Errorf("unexpected $orderby: %q", got)
	}
	if got := q.Get("$expand"); got != "Attributes" {
		t.Errorf("unexpected $expand: %q", got)
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"value": []Record{{"Id": "p0"}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second).WithRetry(2, time.Millisecond)

	pages, err := client.Execute(context.Background(), testFilter(1, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || len(pages[0].Records) != 1 {
		t.Fatalf("expected 1 page with 1 record, got %+v", pages)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteRejectedQueryIsNotRetried(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Invalid $filter"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second).WithRetry(3, time.Millisecond)

	_, err := client.Execute(context.Background(), testFilter(1, false))
	var rejected *QueryRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected QueryRejectedError, got %v", err)
	}
	if rejected.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rejected.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestExecuteExhaustsRetryBudget(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second).WithRetry(2, time.Millisecond)

	_, err := client.Execute(context.Background(), testFilter(1, false))
	if !errors.Is(err, ErrQueryUnavailable) {
		t.Fatalf("expected ErrQueryUnavailable, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestExecuteCancelledBeforeFirstPage(t *testing.T) {
	backend := newPageServer(5)
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := client.Execute(ctx, testFilter(5, false))
	if err != nil {
		t.Fatalf("cancellation between pages must not error, got %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected no pages, got %d", len(pages))
	}
	if backend.requestCount() != 0 {
		t.Errorf("expected no requests, got %d", backend.requestCount())
	}
}

func TestExecuteAttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"value": []Record{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second).WithTokenProvider(func(ctx context.Context) (string, error) {
		return "test-token", nil
	})

	if _, err := client.Execute(context.Background(), testFilter(1, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
}

func TestPageURLEncoding(t *testing.T) {
	client := NewClient("https://example.test/odata/v1", time.Second)

	f := &CompiledFilter{
		Mode:     ModeBurst,
		Endpoint: "Bursts",
		Clauses:  []string{"PolarisationChannels eq 'VV%26VH'"},
		OrderBy:  DefaultOrderBy,
		Top:      10,
	}

	got := client.pageURL(f, 10, 20, true)
	want := "https://example.test/odata/v1/Bursts?" +
		"$filter=PolarisationChannels%20eq%20'VV%26VH'" +
		"&$orderby=ContentDate/Start%20desc" +
		"&$top=10&$skip=20&$count=true"
	if got != want {
		t.Errorf("unexpected URL:\n got: %s\nwant: %s", got, want)
	}
}
