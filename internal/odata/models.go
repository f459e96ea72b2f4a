package odata

// Record is one raw JSON record from a catalog page. Product records carry a
// nested "Attributes" array; burst records are flat.
type Record map[string]any

// rawResponse mirrors the catalog's page envelope.
type rawResponse struct {
	Count    *int64   `json:"@odata.count"`
	NextLink string   `json:"@odata.nextLink"`
	Value    []Record `json:"value"`
}

// Page is one server response within a paginated query.
type Page struct {
	Records []Record
	// Count is the server's total matching count, present only on the first
	// page when requested. The service reports the same total on every page,
	// so it is captured once and never re-requested.
	Count *int64
	// Skip is the offset this page was fetched at.
	Skip int
}
