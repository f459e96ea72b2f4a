package odata

import (
	"time"

	"github.com/rkm/cdse-search/pkg/wkt"
)

// Mode selects which catalog endpoint a request targets. The two endpoints
// are structurally different: product records carry a nested attribute
// collection, burst records expose their fields flat.
type Mode int

const (
	// ModeProduct searches the standard Products endpoint.
	ModeProduct Mode = iota
	// ModeBurst searches the Bursts endpoint (individual SAR sub-acquisitions).
	ModeBurst
)

func (m Mode) String() string {
	if m == ModeBurst {
		return "burst"
	}
	return "product"
}

// Orbit direction values accepted by the catalog.
const (
	OrbitAscending  = "ASCENDING"
	OrbitDescending = "DESCENDING"
)

// DefaultOrderBy is the sort expression applied when a request does not set
// one. Descending content date is the catalog's only ordering with enough
// discriminating power for stable offset pagination.
const DefaultOrderBy = "ContentDate/Start desc"

// Attribute is one name/value entry of a request's attribute map. Values are
// strings at the boundary; the registry coerces them per literal kind.
type Attribute struct {
	Name  string
	Value string
}

// SearchRequest is an immutable description of one query intent. It is
// compiled into a CompiledFilter and discarded after normalization.
type SearchRequest struct {
	Mode Mode

	// Collection and ProductType are optional equality filters.
	Collection  string
	ProductType string

	// OrbitDirection is OrbitAscending, OrbitDescending, or empty.
	OrbitDirection string

	// Start and End bound the content date. The comparison operators differ
	// by mode: exclusive gt/lt for products, inclusive ge/le for bursts.
	Start *time.Time
	End   *time.Time

	// AOI is an optional validated area-of-interest polygon.
	AOI *wkt.Polygon

	// CloudCoverThreshold keeps only records whose cloud cover percentage is
	// strictly below the threshold. Must lie within [0, 100]. Product mode
	// only; burst records carry no cloud cover.
	CloudCoverThreshold *float64

	// Attributes are additional filter attributes, applied in order. Every
	// name must be registered for Mode or compilation fails.
	Attributes []Attribute

	// Top is the caller-visible maximum result count. It may exceed the
	// server's per-page cap; the executor splits it across pages.
	Top int

	// WantCount requests the server's total matching count.
	WantCount bool

	// OrderBy is a "field direction" sort expression. Empty means
	// DefaultOrderBy.
	OrderBy string
}
