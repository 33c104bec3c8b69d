package middleware

import (
	"context"
	"regexp"
	"slices"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type redactMiddleware struct {
	next     ports.HistoryStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware masks every match of the patterns in archived message
// and step descriptions, so peer addresses or payloads that protocol code
// prints into them never reach the store. Invalid patterns panic; validate
// them with regexp.Compile first.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.HistoryStore) ports.HistoryStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, id domain.ChainID, entries []domain.HistoryEntry) error {
	// Entries belong to the caller.
	masked := slices.Clone(entries)
	for i := range masked {
		masked[i].Message = m.mask(masked[i].Message)
		masked[i].Step = m.mask(masked[i].Step)
	}
	return m.next.Save(ctx, id, masked)
}

func (m *redactMiddleware) Load(ctx context.Context, id domain.ChainID) ([]domain.HistoryEntry, error) {
	return m.next.Load(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id domain.ChainID) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) List(ctx context.Context) ([]domain.ChainID, error) {
	return m.next.List(ctx)
}

func (m *redactMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllLiteralString(s, Mask)
	}
	return s
}
