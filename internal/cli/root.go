// Package cli wires the search engine into the cdse command-line tool.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rkm/cdse-search/internal/auth"
	"github.com/rkm/cdse-search/internal/config"
	"github.com/rkm/cdse-search/internal/odata"
)

var version = "dev"

// NewRootCmd builds the root cdse command and attaches all subcommands.
func NewRootCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cdse",
		Short: "Search and download Copernicus Data Space catalog products",
		Long: `cdse queries the Copernicus Data Space OData catalog and downloads
products from the eodata object store.

Environment variables:
  CATALOG_BASE_URL     Catalog endpoint (default: https://catalogue.dataspace.copernicus.eu/odata/v1)
  AUTH_USERNAME        Identity-server username (downloads only)
  AUTH_PASSWORD        Identity-server password (downloads only)
  TRANSFER_ACCESS_KEY  Object-store access key (downloads only)
  TRANSFER_SECRET_KEY  Object-store secret key (downloads only)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")

	rootCmd.AddCommand(newSearchCmd(cfg, logger))
	rootCmd.AddCommand(newNameCmd(cfg, logger))
	rootCmd.AddCommand(newDownloadCmd(cfg, logger))

	return rootCmd
}

// newSession builds a catalog session from the configuration. When identity
// credentials are configured the client attaches a bearer token to catalog
// requests; otherwise searches run anonymously.
func newSession(cfg *config.Config, logger *slog.Logger) *odata.Session {
	client := odata.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout).
		WithLogger(logger).
		WithPageCap(cfg.Catalog.PageCap).
		WithRetry(cfg.Catalog.MaxRetries, cfg.Catalog.RetryInterval)

	if cfg.Auth.Username != "" && cfg.Auth.Password != "" {
		grant := auth.NewPasswordGrant(
			cfg.Auth.TokenURL, cfg.Auth.ClientID,
			cfg.Auth.Username, cfg.Auth.Password,
			cfg.Catalog.Timeout,
		).WithLogger(logger)
		client = client.WithTokenProvider(grant.Token)
	}

	return odata.NewSession(client).WithLogger(logger)
}
