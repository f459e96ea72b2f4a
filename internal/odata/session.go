// Package odata implements the query construction and execution engine for
// the Copernicus Data Space OData catalog: filter compilation, paginated
// execution, and normalization of the response into flat rows.
package odata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// State tracks a session through the compile→execute→normalize pipeline.
type State int

const (
	// StateIdle means no query is in flight and no filter is held.
	StateIdle State = iota
	// StateCompiled means a filter is compiled and ready to execute.
	StateCompiled
	// StateExecuting means pages are being fetched.
	StateExecuting
	// StateNormalized means the last query completed and produced a table.
	StateNormalized
)

func (s State) String() string {
	switch s {
	case StateCompiled:
		return "compiled"
	case StateExecuting:
		return "executing"
	case StateNormalized:
		return "normalized"
	default:
		return "idle"
	}
}

// MatchType selects how a name-pattern query matches product names.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startswith"
	MatchEndsWith   MatchType = "endswith"
)

// NamePatternOptions are the optional constraints of a name-pattern query.
type NamePatternOptions struct {
	Collection string // restrict to a catalog collection
	Top        int    // result limit, DefaultTop when zero
	OrderBy    string // sort expression, DefaultOrderBy when empty
}

// Session owns the transient state of one search workflow: the last compiled
// filter, the fetched page count, and the running total. It is mutated only
// by the compile→execute call sequence and supports a single in-flight query;
// it is not safe for concurrent use. Independent workflows should use
// independent sessions.
type Session struct {
	client *Client
	logger *slog.Logger

	state        State
	compiled     *CompiledFilter
	pagesFetched int
	totalRows    int
}

// NewSession creates a session over a catalog client.
func NewSession(client *Client) *Session {
	return &Session{
		client: client,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the session.
func (s *Session) WithLogger(logger *slog.Logger) *Session {
	s.logger = logger
	return s
}

// State returns the session's current pipeline state.
func (s *Session) State() State { return s.state }

// Compiled returns the last compiled filter, or nil when idle.
func (s *Session) Compiled() *CompiledFilter { return s.compiled }

// PagesFetched returns the page count of the last completed query.
func (s *Session) PagesFetched() int { return s.pagesFetched }

// TotalRows returns the normalized row count of the last completed query.
func (s *Session) TotalRows() int { return s.totalRows }

func (s *Session) reset() {
	s.state = StateIdle
	s.compiled = nil
	s.pagesFetched = 0
	s.totalRows = 0
}

// Compile compiles a search request, discarding any prior filter or result.
// On failure the session falls back to idle with no retained partial state.
func (s *Session) Compile(req *SearchRequest) error {
	s.reset()
	f, err := Compile(req)
	if err != nil {
		return err
	}
	s.compiled = f
	s.state = StateCompiled

	s.logger.Debug("compiled search filter",
		slog.String("mode", req.Mode.String()),
		slog.Int("clauses", len(f.Clauses)),
		slog.String("filter", f.Filter()),
	)
	return nil
}

// Execute runs the compiled filter and normalizes the result. It requires a
// prior successful Compile; any failure resets the session to idle.
func (s *Session) Execute(ctx context.Context) (*ResultTable, error) {
	if s.state != StateCompiled {
		return nil, fmt.Errorf("session is %s: compile a request before executing", s.state)
	}
	s.state = StateExecuting

	pages, err := s.client.Execute(ctx, s.compiled)
	if err != nil {
		s.reset()
		return nil, err
	}

	table, err := Normalize(s.compiled.Mode, pages)
	if err != nil {
		s.reset()
		return nil, fmt.Errorf("failed to normalize result: %w", err)
	}

	s.pagesFetched = len(pages)
	s.totalRows = len(table.Rows)
	s.state = StateNormalized

	s.logger.DebugContext(ctx, "search completed",
		slog.Int("pages", s.pagesFetched),
		slog.Int("rows", s.totalRows),
	)
	return table, nil
}

// Run compiles and executes a request in one call.
func (s *Session) Run(ctx context.Context, req *SearchRequest) (*ResultTable, error) {
	if err := s.Compile(req); err != nil {
		return nil, err
	}
	return s.Execute(ctx)
}

// QueryByName looks up a product by its exact name. It is a degenerate
// one-shot path: a single equality clause on the canonical name field with an
// implicit limit of one record.
func (s *Session) QueryByName(ctx context.Context, name string) (*ResultTable, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("product name must not be empty")
	}

	s.reset()
	s.compiled = &CompiledFilter{
		Mode:     ModeProduct,
		Endpoint: endpointProducts,
		Clauses:  []string{"Name eq " + quoteString(name)},
		OrderBy:  DefaultOrderBy,
		Top:      1,
		Expand:   true,
	}
	s.state = StateCompiled

	return s.Execute(ctx)
}

// QueryByNamePattern searches products whose names match a pattern with the
// given match type, optionally restricted to a collection.
func (s *Session) QueryByNamePattern(ctx context.Context, pattern string, match MatchType, opts NamePatternOptions) (*ResultTable, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("name pattern must not be empty")
	}

	var clause string
	switch match {
	case MatchExact:
		clause = "Name eq " + quoteString(pattern)
	case MatchContains:
		clause = "contains(Name," + quoteString(pattern) + ")"
	case MatchStartsWith:
		clause = "startswith(Name," + quoteString(pattern) + ")"
	case MatchEndsWith:
		clause = "endswith(Name," + quoteString(pattern) + ")"
	default:
		return nil, fmt.Errorf("invalid match type %q: must be one of exact, contains, startswith, endswith", match)
	}

	clauses := []string{clause}
	if opts.Collection != "" {
		if err := ValidateCollection(opts.Collection); err != nil {
			return nil, err
		}
		clauses = append(clauses, "Collection/Name eq "+quoteString(opts.Collection))
	}

	orderBy, err := ValidateOrderBy(opts.OrderBy)
	if err != nil {
		return nil, err
	}
	top := opts.Top
	if top <= 0 {
		top = DefaultTop
	}

	s.reset()
	s.compiled = &CompiledFilter{
		Mode:     ModeProduct,
		Endpoint: endpointProducts,
		Clauses:  clauses,
		OrderBy:  orderBy,
		Top:      top,
		Expand:   true,
	}
	s.state = StateCompiled

	return s.Execute(ctx)
}
