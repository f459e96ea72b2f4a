package odata

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the OData literal kind of a filter attribute. It determines how a
// boundary string value is rendered into the filter expression.
type Kind int

const (
	// KindString renders quoted, with OData special characters escaped.
	KindString Kind = iota
	// KindInteger renders unquoted after integer validation.
	KindInteger
	// KindDecimal renders unquoted after decimal validation.
	KindDecimal
	// KindEnumToken renders quoted and requires an exact, case-sensitive
	// match against the attribute's allowed values.
	KindEnumToken
)

// AttributeSpec describes how one registered attribute is typed and, in
// burst mode, which flat record field it filters on.
type AttributeSpec struct {
	Kind    Kind
	Allowed []string // legal values, KindEnumToken only
	Field   string   // burst mode: flat field name on the Bursts endpoint
}

// productAttributes registers the Products-endpoint attribute vocabulary.
// Product attributes are matched through the nested OData.CSC attribute
// collection, so the key is the attribute Name as it appears there.
var productAttributes = map[string]AttributeSpec{
	"productType":              {Kind: KindString},
	"processingLevel":          {Kind: KindString},
	"orbitDirection":           {Kind: KindEnumToken, Allowed: []string{OrbitAscending, OrbitDescending}},
	"polarisationChannels":     {Kind: KindString},
	"swathIdentifier":          {Kind: KindString},
	"operationalMode":          {Kind: KindString},
	"platformSerialIdentifier": {Kind: KindString},
	"instrumentShortName":      {Kind: KindString},
	"timeliness":               {Kind: KindString},
	"productClass":             {Kind: KindString},
	"tileId":                   {Kind: KindString},
	"cloudCover":               {Kind: KindDecimal},
	"relativeOrbitNumber":      {Kind: KindInteger},
	"orbitNumber":              {Kind: KindInteger},
	"sliceNumber":              {Kind: KindInteger},
}

// burstAttributes registers the Bursts-endpoint vocabulary. Burst records
// have no nested attribute collection; the key is the flat field name.
// Some names overlap with product attributes but carry different legal
// value sets, which is why the table is keyed per mode.
var burstAttributes = map[string]AttributeSpec{
	"BurstId":                  {Kind: KindInteger, Field: "BurstId"},
	"AbsoluteBurstId":          {Kind: KindInteger, Field: "AbsoluteBurstId"},
	"DatatakeID":               {Kind: KindInteger, Field: "DatatakeID"},
	"RelativeOrbitNumber":      {Kind: KindInteger, Field: "RelativeOrbitNumber"},
	"SwathIdentifier":          {Kind: KindEnumToken, Field: "SwathIdentifier", Allowed: []string{"IW1", "IW2", "IW3", "EW1", "EW2", "EW3", "EW4", "EW5"}},
	"PolarisationChannels":     {Kind: KindEnumToken, Field: "PolarisationChannels", Allowed: []string{"VV", "VH", "HH", "HV", "VV&VH", "HH&HV"}},
	"OperationalMode":          {Kind: KindEnumToken, Field: "OperationalMode", Allowed: []string{"IW", "EW", "SM"}},
	"PlatformSerialIdentifier": {Kind: KindEnumToken, Field: "PlatformSerialIdentifier", Allowed: []string{"A", "B", "C"}},
	"OrbitDirection":           {Kind: KindEnumToken, Field: "OrbitDirection", Allowed: []string{OrbitAscending, OrbitDescending}},
	"ParentProductName":        {Kind: KindString, Field: "ParentProductName"},
	"ParentProductType":        {Kind: KindString, Field: "ParentProductType"},
	"ParentProductId":          {Kind: KindString, Field: "ParentProductId"},
}

// validCollections lists the collection names the catalog serves.
var validCollections = []string{
	"SENTINEL-1",
	"SENTINEL-2",
	"SENTINEL-3",
	"SENTINEL-5P",
	"SENTINEL-6",
	"SENTINEL-1-RTC",
	"GLOBAL-MOSAICS",
	"SMOS",
	"ENVISAT",
	"LANDSAT-5",
	"LANDSAT-7",
	"LANDSAT-8",
	"COP-DEM",
	"TERRAAQUA",
	"S2GLC",
}

// orderByFields lists sortable fields with enough discriminating power for
// stable offset pagination.
var orderByFields = []string{
	"ContentDate/Start",
	"ContentDate/End",
	"PublicationDate",
	"ModificationDate",
}

// Classify looks up an attribute name in the registry for the given mode.
// Returns ErrUnknownAttribute if the name is not registered for that mode.
func Classify(mode Mode, name string) (AttributeSpec, error) {
	table := productAttributes
	if mode == ModeBurst {
		table = burstAttributes
	}
	spec, ok := table[name]
	if !ok {
		return AttributeSpec{}, fmt.Errorf("%w: %q is not registered for %s mode", ErrUnknownAttribute, name, mode)
	}
	return spec, nil
}

// Literal formats a boundary string value as an OData literal of the spec's
// kind. Returns ErrInvalidAttributeValue if the value cannot be coerced.
func (s AttributeSpec) Literal(value string) (string, error) {
	switch s.Kind {
	case KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not an integer", ErrInvalidAttributeValue, value)
		}
		return strconv.FormatInt(n, 10), nil

	case KindDecimal:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a number", ErrInvalidAttributeValue, value)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case KindEnumToken:
		for _, allowed := range s.Allowed {
			if value == allowed {
				return quoteString(value), nil
			}
		}
		return "", fmt.Errorf("%w: %q must be one of: %s", ErrInvalidAttributeValue, value, strings.Join(s.Allowed, ", "))

	default:
		return quoteString(value), nil
	}
}

// cscType returns the OData.CSC attribute type used in product-mode nested
// attribute clauses.
func (s AttributeSpec) cscType() string {
	switch s.Kind {
	case KindInteger:
		return "OData.CSC.IntegerAttribute"
	case KindDecimal:
		return "OData.CSC.DoubleAttribute"
	default:
		return "OData.CSC.StringAttribute"
	}
}

// quoteString single-quotes a value for the filter grammar. Embedded quotes
// are doubled per OData; "%" and "&" are percent-encoded because the filter
// travels inside a URL query string, where a raw "&" is a parameter delimiter
// and a raw "%" starts an escape sequence. "%" must be encoded first so the
// "%26" produced for "&" is not re-escaped.
func quoteString(v string) string {
	escaped := strings.ReplaceAll(v, "'", "''")
	escaped = strings.ReplaceAll(escaped, "%", "%25")
	escaped = strings.ReplaceAll(escaped, "&", "%26")
	return "'" + escaped + "'"
}

// ValidateCollection checks a collection name against the catalog's known
// collections.
func ValidateCollection(name string) error {
	for _, c := range validCollections {
		if name == c {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown collection %q, must be one of: %s",
		ErrInvalidAttributeValue, name, strings.Join(validCollections, ", "))
}

// ValidateOrderBy checks a "field direction" sort expression and returns it
// in canonical form. An empty expression yields DefaultOrderBy.
func ValidateOrderBy(expr string) (string, error) {
	if strings.TrimSpace(expr) == "" {
		return DefaultOrderBy, nil
	}

	parts := strings.Fields(expr)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: %q must be of the form 'field direction'", ErrInvalidOrderBy, expr)
	}

	field, direction := parts[0], parts[1]
	if direction != "asc" && direction != "desc" {
		return "", fmt.Errorf("%w: direction %q must be 'asc' or 'desc'", ErrInvalidOrderBy, direction)
	}

	for _, f := range orderByFields {
		if field == f {
			return field + " " + direction, nil
		}
	}
	return "", fmt.Errorf("%w: field %q must be one of: %s", ErrInvalidOrderBy, field, strings.Join(orderByFields, ", "))
}
