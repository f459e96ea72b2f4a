package odata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// sessionServer returns one fixed record and remembers the filters it saw.
type sessionServer struct {
	mu      sync.Mutex
	filters []string
	tops    []string
}

func (s *sessionServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.filters = append(s.filters, r.URL.Query().Get("$filter"))
		s.tops = append(s.tops, r.URL.Query().Get("$top"))
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"value": []Record{{
			"Id":   "a1",
			"Name": "S1A_IW_SLC__1SDV_20240501",
			"Attributes": []any{
				map[string]any{"Name": "orbitDirection", "Value": "ASCENDING", "ValueType": "String"},
			},
		}}})
	}
}

func (s *sessionServer) lastFilter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters[len(s.filters)-1]
}

func newTestSession(t *testing.T) (*Session, *sessionServer) {
	t.Helper()
	backend := &sessionServer{}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)
	return NewSession(NewClient(server.URL, 5*time.Second)), backend
}

func TestSessionLifecycle(t *testing.T) {
	session, _ := newTestSession(t)

	if session.State() != StateIdle {
		t.Fatalf("new session must be idle, got %s", session.State())
	}

	req := &SearchRequest{Collection: "SENTINEL-1"}
	if err := session.Compile(req); err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if session.State() != StateCompiled {
		t.Errorf("expected compiled state, got %s", session.State())
	}
	if session.Compiled() == nil {
		t.Fatal("expected a compiled filter")
	}

	table, err := session.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}
	if session.State() != StateNormalized {
		t.Errorf("expected normalized state, got %s", session.State())
	}
	if table.Len() != 1 {
		t.Errorf("expected 1 row, got %d", table.Len())
	}
	if session.PagesFetched() != 1 || session.TotalRows() != 1 {
		t.Errorf("unexpected counters: pages=%d rows=%d", session.PagesFetched(), session.TotalRows())
	}
}

func TestSessionExecuteRequiresCompile(t *testing.T) {
	session, _ := newTestSession(t)

	if _, err := session.Execute(context.Background()); err == nil {
		t.Fatal("expected an error when executing without a compiled filter")
	}
}

func TestSessionCompileFailureLeavesIdle(t *testing.T) {
	session, _ := newTestSession(t)

	if err := session.Compile(&SearchRequest{}); err == nil {
		t.Fatal("expected an error for an empty request")
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state after failed compile, got %s", session.State())
	}
	if session.Compiled() != nil {
		t.Error("expected no retained filter after failed compile")
	}
}

func TestSessionRecompileDiscardsPriorResult(t *testing.T) {
	session, _ := newTestSession(t)

	if _, err := session.Run(context.Background(), &SearchRequest{Collection: "SENTINEL-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := session.Compile(&SearchRequest{Collection: "SENTINEL-2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.State() != StateCompiled {
		t.Errorf("expected compiled state, got %s", session.State())
	}
	if session.PagesFetched() != 0 || session.TotalRows() != 0 {
		t.Error("expected counters reset by recompile")
	}
}

func TestSessionQueryByName(t *testing.T) {
	session, backend := newTestSession(t)

	table, err := session.QueryByName(context.Background(), "S1A_IW_SLC__1SDV_20240501")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("expected 1 row, got %d", table.Len())
	}

	if got, want := backend.lastFilter(), "Name eq 'S1A_IW_SLC__1SDV_20240501'"; got != want {
		t.Errorf("expected filter %q, got %q", want, got)
	}
	if got := backend.tops[0]; got != "1" {
		t.Errorf("expected $top=1, got %q", got)
	}
	if session.State() != StateNormalized {
		t.Errorf("expected normalized state, got %s", session.State())
	}
}

func TestSessionQueryByNameRejectsEmpty(t *testing.T) {
	session, _ := newTestSession(t)

	if _, err := session.QueryByName(context.Background(), "   "); err == nil {
		t.Fatal("expected an error for a blank name")
	}
}

func TestSessionQueryByNamePattern(t *testing.T) {
	tests := []struct {
		name       string
		match      MatchType
		collection string
		wantFilter string
	}{
		{
			name:       "contains",
			match:      MatchContains,
			wantFilter: "contains(Name,'IW_SLC')",
		},
		{
			name:       "startswith",
			match:      MatchStartsWith,
			wantFilter: "startswith(Name,'IW_SLC')",
		},
		{
			name:       "endswith",
			match:      MatchEndsWith,
			wantFilter: "endswith(Name,'IW_SLC')",
		},
		{
			name:       "exact",
			match:      MatchExact,
			wantFilter: "Name eq 'IW_SLC'",
		},
		{
			name:       "contains with collection",
			match:      MatchContains,
			collection: "SENTINEL-1",
			wantFilter: "contains(Name,'IW_SLC') and Collection/Name eq 'SENTINEL-1'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, backend := newTestSession(t)

			_, err := session.QueryByNamePattern(context.Background(), "IW_SLC", tt.match, NamePatternOptions{
				Collection: tt.collection,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := backend.lastFilter(); got != tt.wantFilter {
				t.Errorf("expected filter %q, got %q", tt.wantFilter, got)
			}
		})
	}
}

func TestSessionQueryByNamePatternValidation(t *testing.T) {
	session, _ := newTestSession(t)

	if _, err := session.QueryByNamePattern(context.Background(), "x", "fuzzy", NamePatternOptions{}); err == nil {
		t.Error("expected an error for an invalid match type")
	}
	if _, err := session.QueryByNamePattern(context.Background(), "x", MatchContains, NamePatternOptions{Collection: "NOPE"}); err == nil {
		t.Error("expected an error for an unknown collection")
	}
	if _, err := session.QueryByNamePattern(context.Background(), "x", MatchContains, NamePatternOptions{OrderBy: "Name asc"}); err == nil {
		t.Error("expected an error for an invalid order-by")
	}
}

func TestSessionPercentSignSurvivesURLDecoding(t *testing.T) {
	session, backend := newTestSession(t)

	// A literal "%" in a name must not be mis-read server-side as the start
	// of an escape sequence; after query decoding the server sees the
	// original value.
	if _, err := session.QueryByName(context.Background(), "X%20Y"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := backend.lastFilter(), "Name eq 'X%20Y'"; got != want {
		t.Errorf("expected decoded filter %q, got %q", want, got)
	}
}

func TestSessionSingleQuoteEscapedInName(t *testing.T) {
	session, backend := newTestSession(t)

	if _, err := session.QueryByName(context.Background(), "it's"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filter := backend.lastFilter()
	if !strings.Contains(filter, "'it''s'") {
		t.Errorf("expected doubled quote in filter, got %q", filter)
	}
	// Sanity: the filter survived URL round-tripping.
	if _, err := url.ParseQuery("$filter=" + url.QueryEscape(filter)); err != nil {
		t.Errorf("filter not URL safe: %v", err)
	}
}
