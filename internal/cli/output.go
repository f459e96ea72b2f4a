package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/rkm/cdse-search/internal/odata"
)

// Columns shown in table output when present, in display order. Anything
// else stays available through --json.
var productDisplayColumns = []string{"Name", "Id", "S3Path", "Online"}

var burstDisplayColumns = []string{
	"Id", "BurstId", "SwathIdentifier", "PolarisationChannels",
	"OrbitDirection", "ParentProductName",
}

const maxFallbackColumns = 6

// printResult renders a result table either as JSON or as an ASCII table.
func printResult(w io.Writer, table *odata.ResultTable, mode odata.Mode, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Columns    []string    `json:"columns"`
			Rows       []odata.Row `json:"rows"`
			TotalCount *int64      `json:"total_count,omitempty"`
		}{table.Columns, table.Rows, table.TotalCount})
	}

	if table.Len() == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	cols := displayColumns(table, mode)

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(cols)
	tw.SetAutoWrapText(false)
	for _, row := range table.Rows {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = formatCell(row[col])
		}
		tw.Append(cells)
	}
	tw.Render()

	if table.TotalCount != nil {
		fmt.Fprintf(w, "%d of %d matching records\n", table.Len(), *table.TotalCount)
	} else {
		fmt.Fprintf(w, "%d records\n", table.Len())
	}
	return nil
}

// displayColumns picks the preferred columns that exist in the table, falling
// back to the first few discovered columns when none of them do.
func displayColumns(table *odata.ResultTable, mode odata.Mode) []string {
	preferred := productDisplayColumns
	if mode == odata.ModeBurst {
		preferred = burstDisplayColumns
	}

	present := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		present[c] = true
	}

	var cols []string
	for _, c := range preferred {
		if present[c] {
			cols = append(cols, c)
		}
	}
	if len(cols) > 0 {
		return cols
	}

	if len(table.Columns) > maxFallbackColumns {
		return table.Columns[:maxFallbackColumns]
	}
	return table.Columns
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", val)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}
