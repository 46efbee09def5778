package filter

import (
	"fmt"
	"testing"
)

func BenchmarkAllowsMessage_NoFilters(b *testing.B) {
	f, err := New(Options{})
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.AllowsMessage("Bob", "a perfectly ordinary message")
	}
}

func BenchmarkAllowsMessage_ExcludePatterns(b *testing.B) {
	patterns := make([]string, 10)
	for i := range patterns {
		patterns[i] = fmt.Sprintf("pattern%d", i)
	}
	f, err := New(Options{ExcludeText: patterns})
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.AllowsMessage("Bob", "a perfectly ordinary message that matches nothing")
	}
}

func BenchmarkAllowsConversation_IncludePatterns(b *testing.B) {
	f, err := New(Options{IncludeName: []string{"^Alice", "^Bob", "^Carol"}})
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.AllowsConversation("Carol Jones")
	}
}
