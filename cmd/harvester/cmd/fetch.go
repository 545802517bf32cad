package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datakeep/harvester/internal/cache"
	"github.com/datakeep/harvester/internal/config"
	"github.com/datakeep/harvester/internal/source/faostat"
)

var fetchNoChecksum bool

var fetchCmd = &cobra.Command{
	Use:   "fetch [namespace]",
	Short: "Download committed snapshots into the local cache",
	Long: `Download the payload of every snapshot recorded in the index for a
namespace into the local cache directory. Files already present are kept
(CACHED) rather than re-downloaded (FETCH). Each file is verified against
the md5 recorded at commit time unless --no-checksum is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace := faostat.Namespace
		if len(args) == 1 {
			namespace = args[0]
		}
		return runFetch(cmd, namespace)
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchNoChecksum, "no-checksum", false, "skip md5 verification")
}

func runFetch(cmd *cobra.Command, namespace string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Logging)

	ctx := cmd.Context()
	ix, closeIndex, err := newIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeIndex()

	fetcher := cache.NewFetcher(ix, newHTTPClient(cfg), cfg.Cache.Dir, logger)
	summary, err := fetcher.FetchNamespace(ctx, namespace, !fetchNoChecksum)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d fetched, %d cached, %d failed\n", summary.Fetched, summary.Cached, len(summary.Failed))
	for _, failure := range summary.Failed {
		fmt.Fprintf(out, "  failed: %v\n", failure)
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d file(s) failed", len(summary.Failed))
	}
	return nil
}
