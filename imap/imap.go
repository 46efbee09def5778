package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/frozenspider/mail.ru-reader/model"
	"github.com/frozenspider/mail.ru-reader/runner"
	"github.com/frozenspider/mail.ru-reader/state"
	"github.com/frozenspider/mail.ru-reader/stats"
)

var ErrMissingMessageID = errors.New("message id is empty")

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	// MailboxPrefix is the parent mailbox; each conversation becomes a
	// child mailbox under it.
	MailboxPrefix string
	DryRun        bool
}

// Uploader is the pipeline sink that appends rendered messages to an IMAP
// server, one mailbox per conversation.
type Uploader struct {
	opts    Options
	runner  *runner.Runner
	tracker state.Tracker
	exports <-chan model.Message
	logger  *slog.Logger

	ensured map[string]bool
}

func NewUploader(opts Options, r *runner.Runner, logger *slog.Logger) (*Uploader, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	tracker := r.Tracker()
	if tracker == nil {
		return nil, fmt.Errorf("tracker must not be nil")
	}
	uploader := &Uploader{
		opts:    opts,
		runner:  r,
		tracker: tracker,
		exports: r.Exports(),
		logger:  logger,
		ensured: make(map[string]bool),
	}
	r.AddStage("imap", uploader.run)
	return uploader, nil
}

func (u *Uploader) run(ctx context.Context) error {
	var (
		client  *imapclient.Client
		cleanup func()
	)
	defer func() {
		if cleanup != nil {
			cleanup()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-u.exports:
			if !ok {
				return nil
			}
			if msg.ID == "" {
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, Err: ErrMissingMessageID})
				continue
			}
			if msg.Hash == "" {
				err := fmt.Errorf("message %s missing hash", msg.ID)
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
				return err
			}

			target := u.mailboxFor(msg)

			if u.opts.DryRun {
				if err := u.tracker.MarkExported(msg.Hash, msg.ID); err != nil {
					u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
					return err
				}
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeDryRunUpload, MessageID: msg.ID})
				if u.logger != nil {
					u.logger.Debug("dry-run upload", "messageID", msg.ID, "mailbox", target, "hash", msg.Hash)
				}
				continue
			}

			if client == nil {
				var err error
				client, cleanup, err = u.dial(ctx)
				if err != nil {
					u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
					return err
				}
			}

			if err := u.ensureMailbox(client, target); err != nil {
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
				return err
			}

			if err := u.appendMessage(client, target, msg); err != nil {
				err = fmt.Errorf("upload message %s: %w", msg.ID, err)
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
				return err
			}

			if err := u.tracker.MarkExported(msg.Hash, msg.ID); err != nil {
				u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, MessageID: msg.ID, Err: err})
				return err
			}

			u.runner.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeUploaded, MessageID: msg.ID})
			if u.logger != nil {
				u.logger.Debug("uploaded message", "messageID", msg.ID, "mailbox", target, "hash", msg.Hash)
			}
		}
	}
}

func (u *Uploader) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(u.opts.Host, strconv.Itoa(u.opts.Port))
	options := &imapclient.Options{}

	if u.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         u.opts.Host,
			InsecureSkipVerify: u.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if u.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(u.opts.Username, u.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	if u.logger != nil {
		u.logger.Debug("imap connection established", "address", address, "user", u.opts.Username, "prefix", u.opts.MailboxPrefix, "tls", u.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				if u.logger != nil {
					u.logger.Warn("imap logout failed", "err", err)
				}
			}
		}
		if err := client.Close(); err != nil && u.logger != nil {
			u.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

func (u *Uploader) appendMessage(client *imapclient.Client, target string, msg model.Message) error {
	size := int64(len(msg.Raw))

	var opts *imapv2.AppendOptions
	if !msg.SentAt.IsZero() {
		opts = &imapv2.AppendOptions{Time: msg.SentAt}
	}

	cmd := client.Append(target, size, opts)

	remaining := msg.Raw
	for len(remaining) > 0 {
		n, err := cmd.Write(remaining)
		if err != nil {
			_ = cmd.Close()
			return fmt.Errorf("append write: %w", err)
		}
		if n == 0 {
			_ = cmd.Close()
			return fmt.Errorf("append write: wrote 0 bytes")
		}
		remaining = remaining[n:]
	}

	if err := cmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}

	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("append wait: %w", err)
	}

	return nil
}

// mailboxFor maps a message to its conversation mailbox under the prefix.
func (u *Uploader) mailboxFor(msg model.Message) string {
	name := sanitizeMailboxName(msg.Conversation)
	if u.opts.MailboxPrefix == "" {
		return name
	}
	return u.opts.MailboxPrefix + "/" + name
}

// sanitizeMailboxName strips characters with special meaning in mailbox
// names. Conversation names come straight from the archive and can contain
// anything.
func sanitizeMailboxName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '%', '*', '"':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "unnamed"
	}
	return name
}

func (u *Uploader) ensureMailbox(client *imapclient.Client, target string) error {
	if u.ensured[target] {
		return nil
	}

	cmd := client.Create(target, nil)
	if err := cmd.Wait(); err != nil {
		var respErr *imapv2.Error
		if errors.As(err, &respErr) {
			if respErr.Code == imapv2.ResponseCodeAlreadyExists {
				if u.logger != nil {
					u.logger.Debug("imap mailbox already exists", "mailbox", target)
				}
				u.ensured[target] = true
				return nil
			}
		}
		return fmt.Errorf("ensure mailbox %s: %w", target, err)
	}

	if u.logger != nil {
		u.logger.Info("imap mailbox created", "mailbox", target)
	}

	u.ensured[target] = true
	return nil
}
