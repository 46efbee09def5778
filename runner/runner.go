// Package runner orchestrates the export pipeline: a decode stage feeding
// envelopes in, a bridge deduplicating and forwarding them, and a single
// sink stage (mbox or IMAP) consuming the result. The first error from any
// stage cancels the whole run, preserving the decoder's fail-fast
// semantics end to end.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/frozenspider/mail.ru-reader/config"
	"github.com/frozenspider/mail.ru-reader/model"
	"github.com/frozenspider/mail.ru-reader/state"
	"github.com/frozenspider/mail.ru-reader/stats"
)

type StageFunc func(context.Context) error

type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	decoded chan model.Envelope
	exports chan model.Message
	events  chan stats.Event

	tracker state.Tracker

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeDecodedOnce sync.Once
	closeExportsOnce sync.Once
	closeEventsOnce  sync.Once
	since            time.Time
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	ctx, cancel := context.WithCancel(context.Background())

	var tracker state.Tracker
	if cfg.TrackState {
		fileTracker, err := state.NewFileTracker(cfg.StateDir, !cfg.DryRun)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("state tracker: %w", err)
		}
		tracker = fileTracker
	} else {
		tracker = state.NewMemoryTracker()
	}

	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		decoded: make(chan model.Envelope, 32),
		exports: make(chan model.Message, 32),
		events:  make(chan stats.Event, 128),
		tracker: tracker,
	}

	r.AddStage("bridge", r.bridge)
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) Tracker() state.Tracker {
	return r.tracker
}

// DecodedWriter is the channel the decode stage feeds.
func (r *Runner) DecodedWriter() chan<- model.Envelope {
	return r.decoded
}

func (r *Runner) CloseDecoded() {
	r.closeDecodedOnce.Do(func() {
		close(r.decoded)
	})
}

// Exports is the channel the sink stage consumes.
func (r *Runner) Exports() <-chan model.Message {
	return r.exports
}

func (r *Runner) EmitEvent(evt stats.Event) {
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, r.events); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

func (r *Runner) Start() error {
	r.since = time.Now()

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	err := r.err
	if closer, ok := r.tracker.(io.Closer); ok {
		if closeErr := closer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close state tracker: %w", closeErr)
		}
	}
	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration)
	return nil
}

func (r *Runner) bridge(ctx context.Context) error {
	defer r.closeExports()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-r.decoded:
			if !ok {
				return nil
			}

			if envelope.Err != nil {
				r.EmitEvent(stats.Event{Stage: stats.StageDecode, Type: stats.EventTypeError, Err: envelope.Err})
				r.fail(fmt.Errorf("decode envelope: %w", envelope.Err))
				continue
			}

			msg := envelope.Message
			r.EmitEvent(stats.Event{Stage: stats.StageDecode, Type: stats.EventTypeDecoded, MessageID: msg.ID})

			if msg.Hash != "" && r.tracker.AlreadyExported(msg.Hash) {
				r.EmitEvent(stats.Event{Stage: stats.StageDecode, Type: stats.EventTypeDuplicate, MessageID: msg.ID})
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.exports <- msg:
				r.EmitEvent(stats.Event{Stage: stats.StageDecode, Type: stats.EventTypeEnqueued, MessageID: msg.ID})
			}
		}
	}
}

func (r *Runner) closeExports() {
	r.closeExportsOnce.Do(func() {
		close(r.exports)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
