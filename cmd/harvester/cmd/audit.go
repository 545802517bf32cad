package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datakeep/harvester/internal/audit"
	"github.com/datakeep/harvester/internal/config"
	"github.com/datakeep/harvester/internal/source/faostat"
)

var auditCheckURLs bool

var auditCmd = &cobra.Command{
	Use:   "audit [namespace]",
	Short: "Check index records for missing fields",
	Long: `Check every index record in a namespace for missing required fields.
With --check-urls each record's payload URLs are probed as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace := faostat.Namespace
		if len(args) == 1 {
			namespace = args[0]
		}
		return runAudit(cmd, namespace)
	},
}

func init() {
	auditCmd.Flags().BoolVar(&auditCheckURLs, "check-urls", false, "probe payload URLs for liveness")
}

func runAudit(cmd *cobra.Command, namespace string) error {
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

	auditor := audit.New(ix, newHTTPClient(cfg), logger)
	report, err := auditor.AuditNamespace(ctx, namespace, auditCheckURLs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, problem := range report.Problems {
		fmt.Fprintf(out, "  problem: %s\n", problem)
	}
	if report.Malformed > 0 {
		fmt.Fprintf(out, "  %d record(s) could not be decoded\n", report.Malformed)
	}
	if !report.OK() {
		return fmt.Errorf("audit found %d problem(s)", len(report.Problems)+report.Malformed)
	}
	fmt.Fprintf(out, "%d record(s) ok\n", report.Checked)
	return nil
}
