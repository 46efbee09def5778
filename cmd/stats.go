// Package cmd holds the subcommands of the mra-reader CLI. The root
// command, which dumps the archive to the console, lives in main.
package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frozenspider/mail.ru-reader/config"
	"github.com/frozenspider/mail.ru-reader/filter"
	"github.com/frozenspider/mail.ru-reader/mra"
	"github.com/frozenspider/mail.ru-reader/stats"
)

// NewStatsCommand analyses an archive and prints aggregate statistics.
func NewStatsCommand() *cobra.Command {
	var (
		reportDir string
		topN      int
	)

	statsCmd := &cobra.Command{
		Use:   "stats <mra.dbs>",
		Short: "Analyse the archive and show statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadCommon(c, args)
			if err != nil {
				return err
			}

			fmt.Println("Analyzing archive:", cfg.ArchivePath)

			f, err := filter.New(filter.Options{
				IncludeName: cfg.IncludeName,
				IncludeText: cfg.IncludeText,
				ExcludeName: cfg.ExcludeName,
				ExcludeText: cfg.ExcludeText,
			})
			if err != nil {
				return fmt.Errorf("create filter: %w", err)
			}

			archive, err := mra.Open(cfg.ArchivePath, mra.Options{LinkBudget: cfg.LinkBudget})
			if err != nil {
				return err
			}

			conversations, err := archive.Conversations()
			if err != nil {
				return err
			}

			perConversation := make(map[string]int)
			perAuthor := make(map[string]int)
			messageCount := 0
			skippedCount := 0
			var sent, received, sms int

			for _, conv := range conversations {
				if !f.AllowsConversation(conv.Name) {
					continue
				}
				msgs, err := archive.Messages(conv)
				if err != nil {
					return err
				}
				for _, msg := range msgs {
					if !f.AllowsMessage(msg.Author, msg.Text) {
						skippedCount++
						continue
					}
					messageCount++
					perConversation[conv.Name]++
					perAuthor[msg.Author]++
					if msg.Incoming {
						received++
					} else {
						sent++
					}
					if msg.Type == mra.TypeSMS {
						sms++
					}
				}
			}

			totalSeen := messageCount + skippedCount
			var filterPercent float64
			if totalSeen > 0 {
				filterPercent = float64(skippedCount) / float64(totalSeen) * 100
			}
			fmt.Printf("Decoded %d messages in %d conversations (skipped %d by filters, %.2f%%)\n\n",
				messageCount, len(perConversation), skippedCount, filterPercent)
			fmt.Printf("Sent: %d  Received: %d  SMS: %d\n\n", sent, received, sms)

			filterStats := f.GetStats()
			if len(filterStats.Patterns) > 0 {
				fmt.Println("Filter hits:")
				printFilterHits(filterStats.Patterns, filterStats.Hits)
				fmt.Println()
			}

			fmt.Printf("Top %d conversations:\n", topN)
			stats.PrettyPrintTop(perConversation, topN)
			fmt.Println()

			fmt.Printf("Top %d correspondents:\n", topN)
			stats.PrettyPrintTop(perAuthor, topN)
			fmt.Println()

			reports := map[string]map[string]int{
				"conversations":  perConversation,
				"correspondents": perAuthor,
			}
			if err := saveCSVReports(reports, reportDir, 1000); err != nil {
				return fmt.Errorf("error saving CSV reports: %w", err)
			}

			fmt.Printf("Reports saved to directory: %s\n", reportDir)

			return nil
		},
	}

	statsCmd.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	statsCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")

	return statsCmd
}

func saveCSVReports(reports map[string]map[string]int, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for name, counts := range reports {
		filename := fmt.Sprintf("report_%s.csv", normalizeReportName(name))
		filePath := filepath.Join(dir, filename)

		file, err := os.Create(filePath)
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)

		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			file.Close()
			return err
		}

		type pair struct {
			Key   string
			Value int
		}
		var pairs []pair
		for k, v := range counts {
			pairs = append(pairs, pair{k, v})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].Value != pairs[j].Value {
				return pairs[i].Value > pairs[j].Value
			}
			return pairs[i].Key < pairs[j].Key
		})

		for i := 0; i < limit && i < len(pairs); i++ {
			record := []string{
				pairs[i].Key,
				strconv.Itoa(pairs[i].Value),
			}
			if err := writer.Write(record); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		file.Close()

		if err := writer.Error(); err != nil {
			return err
		}
	}

	return nil
}

func printFilterHits(patterns []string, hits map[string]int) {
	type pair struct {
		Pattern string
		Count   int
	}
	var pairs []pair
	for _, pattern := range patterns {
		pairs = append(pairs, pair{pattern, hits[pattern]})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		return pairs[i].Pattern < pairs[j].Pattern
	})

	for _, p := range pairs {
		marker := "-"
		if p.Count > 0 {
			marker = "+"
		}
		fmt.Printf("  %s %s: %d hits\n", marker, p.Pattern, p.Count)
	}
}

func producerOptions(cfg config.Config) mra.ProducerOptions {
	return mra.ProducerOptions{
		Path:        cfg.ArchivePath,
		LinkBudget:  cfg.LinkBudget,
		IncludeName: cfg.IncludeName,
		IncludeText: cfg.IncludeText,
		ExcludeName: cfg.ExcludeName,
		ExcludeText: cfg.ExcludeText,
	}
}

// normalizeReportName converts a report label to a safe filename fragment.
func normalizeReportName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
