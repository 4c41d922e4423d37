package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fteops/dutyrecon/batch"
	"github.com/fteops/dutyrecon/config"
	"github.com/fteops/dutyrecon/db"
	"github.com/fteops/dutyrecon/models"
	"github.com/fteops/dutyrecon/parser"
	"github.com/fteops/dutyrecon/pdfproc"
	"github.com/fteops/dutyrecon/pipeline"
	"github.com/fteops/dutyrecon/portal"
	"github.com/fteops/dutyrecon/report"
	"github.com/fteops/dutyrecon/session"
	"github.com/fteops/dutyrecon/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a batch of MAWBs",
	Long: `Reads batch input (tab/comma/space-delimited rows or a vertical
spreadsheet paste) from a file or stdin, runs the processing pipeline for
each MAWB sequentially, and writes a consolidated results workbook.`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringP("input", "i", "-", "input file ('-' for stdin)")
	runCmd.Flags().String("broker", "", "broker name or ID from the catalog")
	runCmd.Flags().String("format", "", "format name or ID from the catalog")
	runCmd.Flags().StringP("output", "o", "results.xlsx", "results workbook path")
	runCmd.Flags().Bool("ams", true, "run the AMS stage")
	runCmd.Flags().Bool("entries", true, "run the entries stage")
	runCmd.Flags().Bool("custom", true, "run the custom report stage")
	runCmd.Flags().Bool("pdf", false, "download the 7501 batch PDF")
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	items, err := readItems(cmd)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no valid MAWB rows in input")
	}
	logger.WithField("items", len(items)).Info("batch parsed")

	catalog, err := LoadCatalog(viper.GetString("catalog"))
	if err != nil {
		return err
	}
	brokerSel, _ := cmd.Flags().GetString("broker")
	formatSel, _ := cmd.Flags().GetString("format")
	broker, err := catalog.FindBroker(brokerSel)
	if err != nil {
		return err
	}
	format, err := catalog.FindFormat(formatSel)
	if err != nil {
		return err
	}

	orchestrator, err := buildOrchestrator(cmd.Context(), cfg, catalog, logger)
	if err != nil {
		return err
	}

	sections := models.Sections{}
	sections.AMS, _ = cmd.Flags().GetBool("ams")
	sections.Entries, _ = cmd.Flags().GetBool("entries")
	sections.Custom, _ = cmd.Flags().GetBool("custom")
	sections.Download7501PDF, _ = cmd.Flags().GetBool("pdf")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := orchestrator.Run(ctx, parser.ToBatchItems(items, broker.ID, format.ID), sections)

	output, _ := cmd.Flags().GetString("output")
	if err := writeResults(output, results); err != nil {
		return err
	}

	succeeded := 0
	for _, r := range results {
		if r.Status == models.StatusSuccess {
			succeeded++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d item(s): %d succeeded, %d failed. Results: %s\n",
		len(results), succeeded, len(results)-succeeded, output)
	return nil
}

func readItems(cmd *cobra.Command) ([]parser.Item, error) {
	path, _ := cmd.Flags().GetString("input")
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return parser.Parse(string(data)), nil
}

// buildOrchestrator assembles the full service graph: session manager over
// the local store, artifact gateway, result DAO, PDF processor, pipeline
// runner, and the sequential orchestrator.
func buildOrchestrator(ctx context.Context, cfg *config.Config, catalog *Catalog, logger *logrus.Logger) (*batch.Orchestrator, error) {
	store, err := session.NewStore(cfg.SessionsDir, logger)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(store, portal.DefaultBaseURL, logger)

	artifacts, err := storage.New(ctx, storage.Options{
		Bucket:     cfg.Bucket,
		Region:     cfg.Region,
		AccessKey:  cfg.AccessKey,
		SecretKey:  cfg.SecretKey,
		Prefix:     cfg.Prefix,
		PresignTTL: cfg.PresignTTL,
	}, logger)
	if err != nil {
		return nil, err
	}

	var results pipeline.ResultStore
	if cfg.PostgresDSN != "" {
		dao, err := db.NewResultDAO(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		results = dao
	} else {
		logger.Warn("no Postgres DSN configured, results are kept in the workbook only")
		results = nopResultStore{}
	}

	proc := pdfproc.NewProcessor(logger)
	proc.GSBinary = cfg.GSBinary

	runner := pipeline.NewRunner(sessions, artifacts, results, proc, portal.DefaultBaseURL, logger)

	orchestrator := batch.NewOrchestrator(runner, catalog, logger)
	orchestrator.OnProgress = func(message string, percent int) {
		logger.WithField("percent", percent).Info(message)
	}
	orchestrator.OnLog = func(message string) {
		logger.Info(message)
	}
	return orchestrator, nil
}

func writeResults(path string, results []models.Result) error {
	data, err := report.ExportResults(results)
	if err != nil {
		return fmt.Errorf("failed to build results workbook: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results workbook: %w", err)
	}
	return nil
}

// nopResultStore satisfies the pipeline when no database is configured.
type nopResultStore struct{}

func (nopResultStore) Upsert(ctx context.Context, rec *models.Result) error { return nil }
