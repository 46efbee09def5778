package mra

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/frozenspider/mail.ru-reader/filter"
	"github.com/frozenspider/mail.ru-reader/model"
	"github.com/frozenspider/mail.ru-reader/runner"
)

// ProducerOptions configures the decode stage of the export pipeline.
type ProducerOptions struct {
	Path        string
	LinkBudget  int
	IncludeName []string
	IncludeText []string
	ExcludeName []string
	ExcludeText []string
}

// Producer decodes an archive and streams its messages into the pipeline,
// oldest first within each conversation so exports read naturally.
type Producer struct {
	opts   ProducerOptions
	filter *filter.Filter
	runner *runner.Runner
	logger *slog.Logger
}

func NewProducer(opts ProducerOptions, r *runner.Runner, logger *slog.Logger) (*Producer, error) {
	f, err := filter.New(filter.Options{
		IncludeName: opts.IncludeName,
		IncludeText: opts.IncludeText,
		ExcludeName: opts.ExcludeName,
		ExcludeText: opts.ExcludeText,
	})
	if err != nil {
		return nil, err
	}

	producer := &Producer{opts: opts, filter: f, runner: r, logger: logger}
	r.AddStage("decode", producer.run)
	return producer, nil
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseDecoded()

	archive, err := Open(p.opts.Path, Options{Logger: p.logger, LinkBudget: p.opts.LinkBudget})
	if err != nil {
		return p.emitError(ctx, err)
	}

	conversations, err := archive.Conversations()
	if err != nil {
		return p.emitError(ctx, err)
	}

	for _, conv := range conversations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.filter.AllowsConversation(conv.Name) {
			if p.logger != nil {
				p.logger.Debug("conversation filtered out", "name", conv.Name)
			}
			continue
		}

		msgs, err := archive.Messages(conv)
		if err != nil {
			return p.emitError(ctx, err)
		}

		// The chain is walked newest first; exports want chronological
		// order.
		for i := len(msgs) - 1; i >= 0; i-- {
			msg := msgs[i]
			if !p.filter.AllowsMessage(msg.Author, msg.Text) {
				continue
			}

			msg.ID = fmt.Sprintf("%d.%d@mra.invalid", msg.ConversationID, msg.Seq)
			msg.Raw = msg.RFC822()
			sum := sha256.Sum256(msg.Raw)
			msg.Hash = base64.StdEncoding.EncodeToString(sum[:])

			if err := p.emitEnvelope(ctx, model.Envelope{Message: msg}); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Producer) emitError(ctx context.Context, err error) error {
	if p.logger != nil {
		p.logger.Error("archive decode error", "path", p.opts.Path, "err", err)
	}
	return p.emitEnvelope(ctx, model.Envelope{Err: err})
}

func (p *Producer) emitEnvelope(ctx context.Context, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.runner.DecodedWriter() <- env:
		return nil
	}
}

// FilterStats exposes the per-pattern hit counts accumulated while
// producing.
func (p *Producer) FilterStats() filter.Stats {
	return p.filter.GetStats()
}
