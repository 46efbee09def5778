package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/frozenspider/mail.ru-reader/config"
	"github.com/frozenspider/mail.ru-reader/filter"
	"github.com/frozenspider/mail.ru-reader/imap"
	"github.com/frozenspider/mail.ru-reader/mra"
	"github.com/frozenspider/mail.ru-reader/progress"
	"github.com/frozenspider/mail.ru-reader/runner"
	"github.com/frozenspider/mail.ru-reader/stats"
)

// NewExportIMAPCommand uploads the decoded archive to an IMAP server, one
// mailbox per conversation.
func NewExportIMAPCommand() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export-imap <mra.dbs>",
		Short: "Upload the archive's messages to an IMAP mailbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadCommon(c, args)
			if err != nil {
				return err
			}
			cfg, err = config.LoadIMAP(c, cfg)
			if err != nil {
				return err
			}

			logger, cleanup, err := config.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting imap export",
				"archive", cfg.ArchivePath, "host", cfg.IMAPHost,
				"prefix", cfg.MailboxPrefix, "dryRun", cfg.DryRun)

			return runExportIMAP(cfg, logger)
		},
	}

	if err := config.RegisterIMAPFlags(exportCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	return exportCmd
}

func runExportIMAP(cfg config.Config, logger *slog.Logger) error {
	// Decode once up front so the progress bar knows the total; the
	// archive sits in memory, a second pass is cheap. The count goes
	// through the same filters the producer applies, so the bar can
	// actually reach it.
	archive, err := mra.Open(cfg.ArchivePath, mra.Options{LinkBudget: cfg.LinkBudget})
	if err != nil {
		return err
	}
	f, err := filter.New(filter.Options{
		IncludeName: cfg.IncludeName,
		IncludeText: cfg.IncludeText,
		ExcludeName: cfg.ExcludeName,
		ExcludeText: cfg.ExcludeText,
	})
	if err != nil {
		return err
	}
	total, err := archive.CountExportable(f)
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	alreadyDone := r.Tracker().Snapshot().Exported
	bar := progress.New(total, alreadyDone, cfg.LogLevel)
	if bar.Enabled() {
		progress.NewReporter(r, bar, logger)
	} else {
		stats.NewReporter(r, logger)
	}

	if _, err := mra.NewProducer(producerOptions(cfg), r, logger); err != nil {
		return fmt.Errorf("mra.NewProducer: %w", err)
	}

	uploaderOpts := imap.Options{
		Host:               cfg.IMAPHost,
		Port:               cfg.IMAPPort,
		Username:           cfg.IMAPUser,
		Password:           cfg.IMAPPass,
		UseTLS:             cfg.UseTLS,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MailboxPrefix:      cfg.MailboxPrefix,
		DryRun:             cfg.DryRun,
	}

	if _, err := imap.NewUploader(uploaderOpts, r, logger); err != nil {
		return fmt.Errorf("imap.NewUploader: %w", err)
	}

	err = r.Start()
	bar.Stop()
	return err
}
