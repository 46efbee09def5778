package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/frozenspider/mail.ru-reader/cmd"
	"github.com/frozenspider/mail.ru-reader/config"
	"github.com/frozenspider/mail.ru-reader/filter"
	"github.com/frozenspider/mail.ru-reader/mra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mra-reader <mra.dbs>",
		Short: "Decode a Mail.ru Agent message-history archive and print its conversations",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadCommon(c, args)
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
			logger.Info("starting mra-reader", "archive", cfg.ArchivePath)

			return run(cfg, logger)
		},
	}

	config.RegisterCommonFlags(rootCmd)
	rootCmd.AddCommand(cmd.NewStatsCommand())
	rootCmd.AddCommand(cmd.NewExportMboxCommand())
	rootCmd.AddCommand(cmd.NewExportIMAPCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	archive, err := mra.Open(cfg.ArchivePath, mra.Options{Logger: logger, LinkBudget: cfg.LinkBudget})
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

	conversations, err := archive.Conversations()
	if err != nil {
		return err
	}

	shown := 0
	total := 0
	for _, conv := range conversations {
		if !f.AllowsConversation(conv.Name) {
			continue
		}

		msgs, err := archive.Messages(conv)
		if err != nil {
			return err
		}

		shown++
		fmt.Printf("=== %s\n", conv.Name)
		for _, msg := range msgs {
			if !f.AllowsMessage(msg.Author, msg.Text) {
				continue
			}
			total++
			fmt.Printf("%s\n%s\n\n", msg.Author, msg.Text)
		}
		fmt.Println("===")
	}

	fmt.Printf("Found %d conversations, %d total messages\n", shown, total)
	return nil
}
