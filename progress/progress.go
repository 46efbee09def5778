package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/frozenspider/mail.ru-reader/stats"
)

// Bar manages a progress bar for tracking message export.
type Bar struct {
	pb             *pterm.ProgressbarPrinter
	total          int
	alreadyDone    int
	currentDecoded int
	mu             sync.Mutex
	enabled        bool
}

// New creates a progress bar if logLevel is "info"; other levels keep the
// terminal free for log output.
func New(total int, alreadyDone int, logLevel string) *Bar {
	enabled := logLevel == "info"

	bar := &Bar{
		total:       total,
		alreadyDone: alreadyDone,
		enabled:     enabled,
	}

	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Exporting messages").
			Start()

		bar.pb = pb

		pterm.Info.Printf("Total messages in archive: %d\n", total)
		pterm.Info.Printf("Already exported: %d\n", alreadyDone)
		pterm.Info.Printf("Remaining to export: %d\n", total-alreadyDone)
		pterm.Println()

		pb.Current = alreadyDone
	}

	return bar
}

// Enabled reports whether the bar renders anything.
func (b *Bar) Enabled() bool {
	return b.enabled
}

// Update advances the progress bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeDecoded:
		b.currentDecoded++
		b.pb.Increment()

		if evt.MessageID != "" {
			displayID := evt.MessageID
			if len(displayID) > 40 {
				displayID = displayID[:37] + "..."
			}
			b.pb.UpdateTitle("Exporting: " + displayID)
		}
	case stats.EventTypeUploaded, stats.EventTypeExported, stats.EventTypeDryRunUpload, stats.EventTypeDuplicate:
		// Totals show up in the final summary.
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	b.pb.Stop()
	pterm.Success.Println("Export complete!")
}

// Reporter combines the progress bar with a stats collector that prints a
// final summary.
type Reporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	// Single subscriber drives both the bar and the collector.
	stream.SubscribeStats("progress", reporter.consume)

	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan stats.Event) error {
	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case evt, ok := <-events:
			if !ok {
				done = true
				break
			}
			r.bar.Update(evt)
			r.collector.Apply(evt)
		}
	}

	summary := r.collector.Snapshot()
	duration := time.Since(r.started)

	if r.logger != nil {
		pterm.Println()
		pterm.DefaultSection.Println("Summary Statistics")
		pterm.Info.Printf("Duration: %v\n", duration)
		pterm.Info.Printf("Decoded: %d\n", summary.Decoded)
		pterm.Info.Printf("Enqueued: %d\n", summary.Enqueued)
		pterm.Info.Printf("Exported: %d\n", summary.Exported)
		pterm.Info.Printf("Uploaded: %d\n", summary.Uploaded)
		pterm.Info.Printf("Dry-run uploaded: %d\n", summary.DryRunUploaded)
		pterm.Info.Printf("Duplicates (skipped): %d\n", summary.Duplicates)
		pterm.Info.Printf("Errors: %d\n", summary.Errors)
		if summary.LastError != nil {
			pterm.Error.Printf("Last error: %v\n", summary.LastError)
		}
	}

	return nil
}
