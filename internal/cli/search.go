package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rkm/cdse-search/internal/config"
	"github.com/rkm/cdse-search/internal/odata"
	"github.com/rkm/cdse-search/pkg/wkt"
)

// Accepted layouts for --start/--end values.
var inputDateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func newSearchCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var (
		burst          bool
		collection     string
		productType    string
		orbitDirection string
		start          string
		end            string
		aoi            string
		cloudCover     float64
		attrs          []string
		top            int
		count          bool
		orderBy        string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog with filter criteria",
		Long: `Searches the Products endpoint (or Bursts with --burst) using the
given criteria. All criteria are optional but at least one is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			req := &odata.SearchRequest{
				Collection:     collection,
				ProductType:    productType,
				OrbitDirection: orbitDirection,
				Top:            top,
				WantCount:      count,
				OrderBy:        orderBy,
			}
			if burst {
				req.Mode = odata.ModeBurst
			}

			var err error
			if req.Start, err = parseDateFlag("start", start); err != nil {
				return err
			}
			if req.End, err = parseDateFlag("end", end); err != nil {
				return err
			}

			if cmd.Flags().Changed("cloud-cover") {
				req.CloudCoverThreshold = &cloudCover
			}

			if aoi != "" {
				polygon, err := wkt.ParsePolygon(aoi)
				if err != nil {
					return fmt.Errorf("invalid --aoi: %w", err)
				}
				req.AOI = polygon
			}

			for _, a := range attrs {
				name, value, ok := strings.Cut(a, "=")
				if !ok || name == "" {
					return fmt.Errorf("invalid --attr %q: expected name=value", a)
				}
				req.Attributes = append(req.Attributes, odata.Attribute{Name: name, Value: value})
			}

			session := newSession(cfg, logger)
			table, err := session.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), table, req.Mode, asJSON)
		},
	}

	cmd.Flags().BoolVar(&burst, "burst", false, "Search the Sentinel-1 burst catalog instead of products")
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection name (e.g. SENTINEL-1)")
	cmd.Flags().StringVarP(&productType, "product-type", "p", "", "Product type (e.g. IW_SLC__1S)")
	cmd.Flags().StringVar(&orbitDirection, "orbit-direction", "", "Orbit direction: ASCENDING or DESCENDING")
	cmd.Flags().StringVarP(&start, "start", "s", "", "Sensing window start (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVarP(&end, "end", "e", "", "Sensing window end (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&aoi, "aoi", "", "Area of interest as WKT POLYGON((lon lat,...))")
	cmd.Flags().Float64Var(&cloudCover, "cloud-cover", 0, "Keep records with cloud cover below this percentage (products only)")
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "Extra attribute filter as name=value (repeatable)")
	cmd.Flags().IntVarP(&top, "top", "n", 0, "Maximum number of records (default 1000)")
	cmd.Flags().BoolVar(&count, "count", false, "Request the total matching count from the server")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Sort expression (default \"ContentDate/Start desc\")")

	return cmd
}

// parseDateFlag parses an optional date flag value, returning nil when unset.
func parseDateFlag(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, format := range inputDateFormats {
		t, err := time.Parse(format, value)
		if err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD or RFC3339", flag, value)
}
