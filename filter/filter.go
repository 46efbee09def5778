// Package filter narrows a decoded archive down to the conversations and
// messages the user asked for, via regex allow- or block-lists.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Options captures the filtering configuration.
type Options struct {
	IncludeName []string
	IncludeText []string
	ExcludeName []string
	ExcludeText []string
}

// Filter holds compiled regex patterns applied to conversation names and
// message author/text. Include and exclude modes are mutually exclusive.
type Filter struct {
	includeMode bool
	excludeMode bool
	includeName []*regexp.Regexp
	includeText []*regexp.Regexp
	excludeName []*regexp.Regexp
	excludeText []*regexp.Regexp

	mu   sync.Mutex
	hits map[string]int
}

// Stats reports per-pattern hit counts accumulated so far.
type Stats struct {
	Patterns []string
	Hits     map[string]int
}

// New creates a Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeName, err := compilePatterns(opts.IncludeName)
	if err != nil {
		return nil, fmt.Errorf("compile include-name pattern: %w", err)
	}
	includeText, err := compilePatterns(opts.IncludeText)
	if err != nil {
		return nil, fmt.Errorf("compile include-text pattern: %w", err)
	}
	excludeName, err := compilePatterns(opts.ExcludeName)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-name pattern: %w", err)
	}
	excludeText, err := compilePatterns(opts.ExcludeText)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-text pattern: %w", err)
	}

	includeActive := len(includeName) > 0 || len(includeText) > 0
	excludeActive := len(excludeName) > 0 || len(excludeText) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return &Filter{
		includeMode: includeActive,
		excludeMode: excludeActive,
		includeName: includeName,
		includeText: includeText,
		excludeName: excludeName,
		excludeText: excludeText,
		hits:        make(map[string]int),
	}, nil
}

// AllowsConversation returns true if a conversation with the given name
// passes the name filters. Text patterns are deliberately ignored here:
// a conversation is only dropped by name, its messages are judged one by
// one.
func (f *Filter) AllowsConversation(name string) bool {
	if f.includeMode && len(f.includeName) > 0 {
		return f.matchAny(f.includeName, name)
	}
	if f.excludeMode && f.matchAny(f.excludeName, name) {
		return false
	}
	return true
}

// AllowsMessage returns true if a message with the given author and text
// passes the text filters.
func (f *Filter) AllowsMessage(author, text string) bool {
	if f.includeMode {
		if len(f.includeText) == 0 {
			return true
		}
		return f.matchAny(f.includeText, author) || f.matchAny(f.includeText, text)
	}
	if f.excludeMode {
		if f.matchAny(f.excludeText, author) || f.matchAny(f.excludeText, text) {
			return false
		}
	}
	return true
}

// GetStats returns a snapshot of per-pattern hit counts.
func (f *Filter) GetStats() Stats {
	var patterns []string
	for _, group := range [][]*regexp.Regexp{f.includeName, f.includeText, f.excludeName, f.excludeText} {
		for _, re := range group {
			patterns = append(patterns, re.String())
		}
	}

	f.mu.Lock()
	hits := make(map[string]int, len(f.hits))
	for k, v := range f.hits {
		hits[k] = v
	}
	f.mu.Unlock()

	return Stats{Patterns: patterns, Hits: hits}
}

func (f *Filter) matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			f.mu.Lock()
			f.hits[re.String()]++
			f.mu.Unlock()
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
