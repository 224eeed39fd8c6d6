package validator

import (
	"fmt"
	"strings"

	"github.com/wattlebot/wattle/pkg/domain"
)

// Display caps mirrored by the renderer; exceeding them is a warning here
// because rendering truncates instead of failing.
const (
	maxQuickReplies = 10
	maxButtons      = 3
)

// Report lists the integrity problems of a block graph. Errors make the
// graph unusable; warnings degrade at render time.
type Report struct {
	Errors   []string
	Warnings []string
}

// Err flattens the report's errors into a single error, or nil.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(r.Errors), strings.Join(r.Errors, "\n- "))
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks a block graph for structural problems: duplicate or blank
// ids, dangling successor/attached references, unreachable blocks, invalid
// messages, uncompilable regex patterns, and display cap overflows.
func Validate(blocks []domain.Block) Report {
	var report Report

	index := make(map[string]*domain.Block, len(blocks))
	var entries []string
	for i := range blocks {
		b := &blocks[i]
		if b.ID == "" {
			report.errorf("block %d (%q) has no id", i, b.Name)
			continue
		}
		if _, dup := index[b.ID]; dup {
			report.errorf("duplicate block id '%s'", b.ID)
			continue
		}
		index[b.ID] = b
		if b.StartsConversation {
			entries = append(entries, b.ID)
		}
	}

	if len(entries) == 0 {
		report.errorf("graph has no entry blocks; no conversation can ever start")
	}

	for _, b := range index {
		validateBlock(&report, b, index)
	}

	// Reachability crawl from the entry set, following successors and
	// attached links.
	visited := make(map[string]bool)
	queue := append([]string(nil), entries...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		b, ok := index[id]
		if !ok {
			continue // Dangling refs are reported per block
		}
		queue = append(queue, b.NextBlocks...)
		if b.AttachedBlock != "" {
			queue = append(queue, b.AttachedBlock)
		}
	}
	for _, b := range index {
		if !visited[b.ID] {
			report.warnf("block '%s' is unreachable from any entry block", b.ID)
		}
	}

	return report
}

func validateBlock(report *Report, b *domain.Block, index map[string]*domain.Block) {
	for _, next := range b.NextBlocks {
		if _, ok := index[next]; !ok {
			report.errorf("block '%s' points to missing successor '%s'", b.ID, next)
		}
	}
	if b.AttachedBlock != "" {
		if _, ok := index[b.AttachedBlock]; !ok {
			report.errorf("block '%s' points to missing attached block '%s'", b.ID, b.AttachedBlock)
		}
	}

	if b.Message.Kind() == domain.KindInvalid {
		report.errorf("block '%s' has an invalid message: exactly one variant must be set", b.ID)
	}

	for i, p := range b.Patterns {
		if p.IsRegex() {
			if _, err := p.Compile(); err != nil {
				report.errorf("block '%s' pattern %d: bad regex %q: %v", b.ID, i, p.Text, err)
			}
		}
	}

	if b.StartsConversation && len(b.Patterns) == 0 {
		report.warnf("entry block '%s' has no patterns and can never match", b.ID)
	}

	if qr := b.Message.QuickReplies; qr != nil && len(qr.QuickReplies) > maxQuickReplies {
		report.warnf("block '%s' declares %d quick replies; rendering keeps the first %d",
			b.ID, len(qr.QuickReplies), maxQuickReplies)
	}
	if btns := b.Message.Buttons; btns != nil && len(btns.Buttons) > maxButtons {
		report.warnf("block '%s' declares %d buttons; rendering keeps the first %d",
			b.ID, len(btns.Buttons), maxButtons)
	}

	if b.Message.Content && b.Options.Content == nil {
		report.errorf("block '%s' is a content block without content options", b.ID)
	}

	if fb := b.Options.Fallback; fb != nil && fb.Active {
		if fb.MaxAttempts <= 0 {
			report.warnf("block '%s' has an active fallback with no retry budget", b.ID)
		}
		if len(fb.Message) == 0 {
			report.warnf("block '%s' has an active fallback without messages", b.ID)
		}
	}
}
