package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rkm/cdse-search/internal/auth"
	"github.com/rkm/cdse-search/internal/config"
	"github.com/rkm/cdse-search/internal/transfer"
)

func newDownloadCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "download <product-name>",
		Short: "Download a product from the eodata object store",
		Long: `Looks up a product by its exact name and downloads its complete
directory tree from the object store. Requires TRANSFER_ACCESS_KEY and
TRANSFER_SECRET_KEY to be set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			session := newSession(cfg, logger)
			table, err := session.QueryByName(ctx, name)
			if err != nil {
				return err
			}
			if table.Len() == 0 {
				return fmt.Errorf("product %q not found in the catalog", name)
			}

			storagePath, ok := table.Rows[0]["S3Path"].(string)
			if !ok || storagePath == "" {
				return fmt.Errorf("product %q has no storage path", name)
			}

			executor, err := transfer.NewS3Executor(ctx, transfer.S3Config{
				Endpoint: cfg.Transfer.Endpoint,
				Region:   cfg.Transfer.Region,
				Keys: auth.S3Keys{
					AccessKey: cfg.Transfer.AccessKey,
					SecretKey: cfg.Transfer.SecretKey,
				},
			})
			if err != nil {
				return err
			}
			executor = executor.WithLogger(logger)

			return executor.Download(ctx, storagePath, outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory to download into")

	return cmd
}
