package odata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is one normalized record: a flat mapping from column name to value.
// Columns a record lacks hold an explicit nil, so row schemas stay uniform
// across pages.
type Row map[string]any

// ResultTable is the final tabular result of a query.
type ResultTable struct {
	Columns []string
	Rows    []Row
	// TotalCount is the server's total matching count, set when the query
	// requested it.
	TotalCount *int64
}

// Len returns the number of rows.
func (t *ResultTable) Len() int { return len(t.Rows) }

// Catalog timestamp formats observed in attribute values and record fields.
var contentTimeFormats = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05",
}

// Normalize flattens raw pages into a ResultTable. Product-mode records have
// their nested Attributes array hoisted into top-level columns named after
// each attribute, with values converted per the attribute's declared
// ValueType. Geometry and checksum sub-objects are preserved verbatim as
// nested structures; their internal shape is consumer-defined. Burst-mode
// records are already flat and pass through.
func Normalize(mode Mode, pages []Page) (*ResultTable, error) {
	table := &ResultTable{}
	if len(pages) > 0 {
		table.TotalCount = pages[0].Count
	}

	seen := make(map[string]bool)
	addColumn := func(name string) {
		if !seen[name] {
			seen[name] = true
			table.Columns = append(table.Columns, name)
		}
	}

	for _, page := range pages {
		for _, rec := range page.Records {
			row := make(Row, len(rec))

			// Base fields in sorted order so the column union is stable.
			keys := make([]string, 0, len(rec))
			for k := range rec {
				if mode == ModeProduct && k == "Attributes" {
					continue
				}
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				addColumn(k)
				row[k] = rec[k]
			}

			if mode == ModeProduct {
				if err := hoistAttributes(rec, row, addColumn); err != nil {
					return nil, err
				}
			}

			table.Rows = append(table.Rows, row)
		}
	}

	// Records may carry different field sets across pages; absent fields
	// become an explicit no-value marker rather than a missing column.
	for _, row := range table.Rows {
		for _, col := range table.Columns {
			if _, ok := row[col]; !ok {
				row[col] = nil
			}
		}
	}

	return table, nil
}

// hoistAttributes lifts each {Name, Value, ValueType} triple of a product
// record's Attributes array into a top-level column.
func hoistAttributes(rec Record, row Row, addColumn func(string)) error {
	rawAttrs, ok := rec["Attributes"]
	if !ok {
		return nil
	}
	attrs, ok := rawAttrs.([]any)
	if !ok {
		return fmt.Errorf("record %v: Attributes is not an array", rec["Id"])
	}

	for _, rawAttr := range attrs {
		attr, ok := rawAttr.(map[string]any)
		if !ok {
			continue
		}
		name, _ := attr["Name"].(string)
		if name == "" {
			continue
		}
		valueType, _ := attr["ValueType"].(string)
		value, err := convertAttributeValue(valueType, attr["Value"])
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		addColumn(name)
		row[name] = value
	}
	return nil
}

// convertAttributeValue coerces an attribute Value per its declared
// ValueType. Unknown value types pass through as decoded.
func convertAttributeValue(valueType string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch valueType {
	case "Integer", "Int64", "Int32":
		switch n := v.(type) {
		case float64:
			return int64(n), nil
		case string:
			parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not an integer", n)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("value %v is not an integer", v)
		}

	case "Double":
		switch n := v.(type) {
		case float64:
			return n, nil
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not a number", n)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("value %v is not a number", v)
		}

	case "DateTimeOffset":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("value %v is not a timestamp", v)
		}
		t, err := parseContentTime(s)
		if err != nil {
			return nil, err
		}
		return t, nil

	case "Boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("value %v is not a boolean", v)

	default:
		return v, nil
	}
}

// parseContentTime parses a catalog timestamp, trying each observed format.
// Returns time in UTC.
func parseContentTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, format := range contentTimeFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, lastErr)
}
