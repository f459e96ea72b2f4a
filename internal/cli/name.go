package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rkm/cdse-search/internal/config"
	"github.com/rkm/cdse-search/internal/odata"
)

func newNameCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var (
		match      string
		collection string
		top        int
		orderBy    string
	)

	cmd := &cobra.Command{
		Use:   "name <pattern>",
		Short: "Search products by name",
		Long: `Searches products by name. With --match exact the pattern must equal
the full product name; contains, startswith and endswith match substrings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			session := newSession(cfg, logger)
			table, err := session.QueryByNamePattern(cmd.Context(), args[0], odata.MatchType(match), odata.NamePatternOptions{
				Collection: collection,
				Top:        top,
				OrderBy:    orderBy,
			})
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), table, odata.ModeProduct, asJSON)
		},
	}

	cmd.Flags().StringVarP(&match, "match", "m", "contains", "Match type: exact, contains, startswith, endswith")
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Restrict to a collection (e.g. SENTINEL-2)")
	cmd.Flags().IntVarP(&top, "top", "n", 0, "Maximum number of records (default 1000)")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Sort expression (default \"ContentDate/Start desc\")")

	return cmd
}
