// Package mbox is the pipeline sink that writes decoded messages into a
// standard mbox file, so any regular mail client can open the archive.
package mbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/frozenspider/mail.ru-reader/model"
	"github.com/frozenspider/mail.ru-reader/runner"
	"github.com/frozenspider/mail.ru-reader/stats"
)

type Options struct {
	Path string
}

type Exporter struct {
	opts    Options
	runner  *runner.Runner
	exports <-chan model.Message
	logger  *slog.Logger
}

func NewExporter(opts Options, r *runner.Runner, logger *slog.Logger) (*Exporter, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("mbox output path is empty")
	}
	exporter := &Exporter{
		opts:    opts,
		runner:  r,
		exports: r.Exports(),
		logger:  logger,
	}
	r.AddStage("mbox", exporter.run)
	return exporter, nil
}

func (e *Exporter) run(ctx context.Context) (err error) {
	file, err := os.Create(e.opts.Path)
	if err != nil {
		return fmt.Errorf("create mbox file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close mbox file: %w", closeErr)
		}
	}()

	writer := mboxlib.NewWriter(file)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-e.exports:
			if !ok {
				if err := writer.Close(); err != nil {
					return fmt.Errorf("close mbox writer: %w", err)
				}
				if e.logger != nil {
					e.logger.Info("mbox export finished", "path", e.opts.Path)
				}
				return nil
			}

			if err := e.writeMessage(writer, msg); err != nil {
				err = fmt.Errorf("export message %s: %w", msg.ID, err)
				e.runner.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
				return err
			}

			e.runner.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeExported, MessageID: msg.ID})
			if e.logger != nil {
				e.logger.Debug("exported message", "messageID", msg.ID, "conversation", msg.Conversation)
			}
		}
	}
}

func (e *Exporter) writeMessage(writer *mboxlib.Writer, msg model.Message) error {
	date := msg.SentAt
	if date.IsZero() {
		date = time.Unix(0, 0).UTC()
	}

	mw, err := writer.CreateMessage(envelopeSender(msg), date)
	if err != nil {
		return fmt.Errorf("create mbox message: %w", err)
	}
	if _, err := mw.Write(msg.Raw); err != nil {
		return fmt.Errorf("write mbox message: %w", err)
	}
	return nil
}

// envelopeSender derives the From-line address for the mbox separator.
func envelopeSender(msg model.Message) string {
	if msg.ID != "" {
		return msg.ID
	}
	return "unknown@mra.invalid"
}
