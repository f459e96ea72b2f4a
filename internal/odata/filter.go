package odata

import (
	"fmt"
	"strconv"
	"strings"
)

// ContentDateFormat is the timestamp layout the catalog expects in filter
// expressions (UTC, millisecond precision, trailing Z).
const ContentDateFormat = "2006-01-02T15:04:05.000Z"

// DefaultTop is the result limit applied when a request does not set one.
// It equals the server's per-page cap, so an unconfigured query fetches a
// single full page, same as the catalog's own default.
const DefaultTop = 1000

// Endpoint path segments, resolved from the request mode.
const (
	endpointProducts = "Products"
	endpointBursts   = "Bursts"
)

// CompiledFilter is the fully derived form of a SearchRequest: an ordered
// list of AND-combined clause strings plus the resolved endpoint. It carries
// no hidden state; identical requests compile to identical filters.
type CompiledFilter struct {
	Mode      Mode
	Endpoint  string // endpoint path segment under the catalog base URL
	Clauses   []string
	OrderBy   string
	Top       int
	WantCount bool
	Expand    bool // product mode: request $expand=Attributes
}

// Filter returns the AND-joined filter expression.
func (f *CompiledFilter) Filter() string {
	return strings.Join(f.Clauses, " and ")
}

// Compile translates a SearchRequest into a CompiledFilter. It is a pure
// function: validation failures propagate and no partial filter is ever
// returned.
func Compile(req *SearchRequest) (*CompiledFilter, error) {
	f := &CompiledFilter{
		Mode:      req.Mode,
		Endpoint:  endpointProducts,
		Top:       req.Top,
		WantCount: req.WantCount,
		Expand:    req.Mode == ModeProduct,
	}
	if req.Mode == ModeBurst {
		// The Bursts endpoint returns burst fields flat; there is no nested
		// attribute collection to expand.
		f.Endpoint = endpointBursts
	}
	if f.Top <= 0 {
		f.Top = DefaultTop
	}

	if req.Collection != "" {
		if err := ValidateCollection(req.Collection); err != nil {
			return nil, err
		}
		f.Clauses = append(f.Clauses, "Collection/Name eq "+quoteString(req.Collection))
	}

	if req.ProductType != "" {
		clause, err := productTypeClause(req.Mode, req.ProductType)
		if err != nil {
			return nil, err
		}
		f.Clauses = append(f.Clauses, clause)
	}

	// Product mode bounds are exclusive, burst mode bounds are inclusive.
	// The Bursts endpoint defines inclusive temporal semantics; using gt/lt
	// there silently drops boundary acquisitions.
	lower, upper := "gt", "lt"
	if req.Mode == ModeBurst {
		lower, upper = "ge", "le"
	}
	if req.Start != nil {
		f.Clauses = append(f.Clauses, "ContentDate/Start "+lower+" "+req.Start.UTC().Format(ContentDateFormat))
	}
	if req.End != nil {
		f.Clauses = append(f.Clauses, "ContentDate/Start "+upper+" "+req.End.UTC().Format(ContentDateFormat))
	}

	if req.OrbitDirection != "" {
		clause, err := orbitDirectionClause(req.Mode, req.OrbitDirection)
		if err != nil {
			return nil, err
		}
		f.Clauses = append(f.Clauses, clause)
	}

	if req.CloudCoverThreshold != nil {
		clause, err := cloudCoverClause(req.Mode, *req.CloudCoverThreshold)
		if err != nil {
			return nil, err
		}
		f.Clauses = append(f.Clauses, clause)
	}

	if req.AOI != nil {
		f.Clauses = append(f.Clauses, "OData.CSC.Intersects(area=geography'SRID=4326;"+req.AOI.WKT()+"')")
	}

	for _, attr := range req.Attributes {
		spec, err := Classify(req.Mode, attr.Name)
		if err != nil {
			return nil, err
		}
		literal, err := spec.Literal(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		if req.Mode == ModeBurst {
			f.Clauses = append(f.Clauses, spec.Field+" eq "+literal)
		} else {
			f.Clauses = append(f.Clauses, nestedAttributeClause(attr.Name, spec, "eq", literal))
		}
	}

	if len(f.Clauses) == 0 {
		return nil, ErrEmptyFilter
	}

	orderBy, err := ValidateOrderBy(req.OrderBy)
	if err != nil {
		return nil, err
	}
	f.OrderBy = orderBy

	return f, nil
}

// productTypeClause maps the direct productType parameter to the mode's
// field model: a nested attribute match for products, the flat
// ParentProductType field for bursts.
func productTypeClause(mode Mode, productType string) (string, error) {
	if mode == ModeBurst {
		spec, err := Classify(ModeBurst, "ParentProductType")
		if err != nil {
			return "", err
		}
		literal, err := spec.Literal(productType)
		if err != nil {
			return "", err
		}
		return spec.Field + " eq " + literal, nil
	}

	spec, err := Classify(ModeProduct, "productType")
	if err != nil {
		return "", err
	}
	literal, err := spec.Literal(productType)
	if err != nil {
		return "", err
	}
	return nestedAttributeClause("productType", spec, "eq", literal), nil
}

// cloudCoverClause emits a strict upper bound on the cloudCover attribute.
// Thresholds outside the percentage range are rejected; burst records have no
// cloud cover to filter on.
func cloudCoverClause(mode Mode, threshold float64) (string, error) {
	if mode == ModeBurst {
		return "", fmt.Errorf("%w: cloud cover threshold is not available in burst mode", ErrUnknownAttribute)
	}
	if threshold < 0 || threshold > 100 {
		return "", fmt.Errorf("%w: cloud cover threshold %s must be within [0, 100]",
			ErrInvalidAttributeValue, strconv.FormatFloat(threshold, 'f', -1, 64))
	}
	spec := productAttributes["cloudCover"]
	literal := strconv.FormatFloat(threshold, 'f', -1, 64)
	return nestedAttributeClause("cloudCover", spec, "lt", literal), nil
}

// orbitDirectionClause emits the orbit-direction equality clause. The
// comparison target differs by mode: products match through the nested
// orbitDirection attribute, bursts expose OrbitDirection as a flat field.
func orbitDirectionClause(mode Mode, direction string) (string, error) {
	if direction != OrbitAscending && direction != OrbitDescending {
		return "", fmt.Errorf("%w: orbit direction %q must be %s or %s",
			ErrInvalidAttributeValue, direction, OrbitAscending, OrbitDescending)
	}

	if mode == ModeBurst {
		return "OrbitDirection eq " + quoteString(direction), nil
	}

	spec, err := Classify(ModeProduct, "orbitDirection")
	if err != nil {
		return "", err
	}
	literal, err := spec.Literal(direction)
	if err != nil {
		return "", err
	}
	return nestedAttributeClause("orbitDirection", spec, "eq", literal), nil
}

// nestedAttributeClause shapes a product-mode "any attribute matches" clause
// over the record's nested OData.CSC attribute collection. op is the OData
// comparison operator applied to the attribute value.
func nestedAttributeClause(name string, spec AttributeSpec, op, literal string) string {
	csc := spec.cscType()
	return "Attributes/" + csc + "/any(att:att/Name eq '" + name + "' and att/" + csc + "/Value " + op + " " + literal + ")"
}
