package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/frozenspider/mail.ru-reader/config"
	"github.com/frozenspider/mail.ru-reader/mbox"
	"github.com/frozenspider/mail.ru-reader/mra"
	"github.com/frozenspider/mail.ru-reader/runner"
	"github.com/frozenspider/mail.ru-reader/stats"
)

// NewExportMboxCommand writes the decoded archive into a standard mbox
// file.
func NewExportMboxCommand() *cobra.Command {
	var outputPath string

	exportCmd := &cobra.Command{
		Use:   "export-mbox <mra.dbs>",
		Short: "Export the archive's messages into an mbox file",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadCommon(c, args)
			if err != nil {
				return err
			}
			cfg.OutputPath = outputPath

			logger, cleanup, err := config.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting mbox export", "archive", cfg.ArchivePath, "output", cfg.OutputPath)

			r, err := runner.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("runner.New: %w", err)
			}
			stats.NewReporter(r, logger)

			if _, err := mra.NewProducer(producerOptions(cfg), r, logger); err != nil {
				return fmt.Errorf("mra.NewProducer: %w", err)
			}

			if _, err := mbox.NewExporter(mbox.Options{Path: cfg.OutputPath}, r, logger); err != nil {
				return fmt.Errorf("mbox.NewExporter: %w", err)
			}

			return r.Start()
		},
	}

	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path of the mbox file to write")
	_ = exportCmd.MarkFlagRequired("output")

	return exportCmd
}
