package mbox

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/frozenspider/mail.ru-reader/config"
	"github.com/frozenspider/mail.ru-reader/model"
	"github.com/frozenspider/mail.ru-reader/runner"
)

func TestExporterWritesMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbox")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, err := runner.New(config.Config{}, logger)
	if err != nil {
		t.Fatalf("runner.New() error = %v", err)
	}
	if _, err := NewExporter(Options{Path: path}, r, logger); err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	msg := model.Message{
		ConversationID: 2,
		Conversation:   "Alice",
		Author:         "Bob",
		Text:           "hi there",
		SentAt:         time.Date(2024, 1, 16, 17, 33, 20, 0, time.UTC),
		Incoming:       true,
		ID:             "2.0@mra.invalid",
	}
	msg.Raw = msg.RFC822()

	go func() {
		r.DecodedWriter() <- model.Envelope{Message: msg}
		r.CloseDecoded()
	}()

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "From ") {
		t.Errorf("mbox does not start with a From line:\n%s", content)
	}
	if !strings.Contains(content, "hi there") {
		t.Errorf("mbox missing message body:\n%s", content)
	}
	if !strings.Contains(content, "Message-ID: <2.0@mra.invalid>") {
		t.Errorf("mbox missing message id header:\n%s", content)
	}
}

func TestNewExporterEmptyPath(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := runner.New(config.Config{}, logger)
	if err != nil {
		t.Fatalf("runner.New() error = %v", err)
	}
	if _, err := NewExporter(Options{}, r, logger); err == nil {
		t.Error("NewExporter() with empty path succeeded, want error")
	}
}
