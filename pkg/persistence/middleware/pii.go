package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the values of state keys
// matching any of the patterns, in the final state and in every step log
// entry. Masking is one-way: loaded records keep the mask.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RunStore) ports.RunStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, rec *domain.RunRecord) error {
	// Copy so the record returned to the caller keeps its values.
	cloned := *rec
	cloned.FinalState = m.masked(rec.FinalState)
	if rec.Log != nil {
		cloned.Log = make([]domain.StepLog, len(rec.Log))
		for i, entry := range rec.Log {
			entry.Snapshot = m.masked(entry.Snapshot)
			entry.Delta = m.masked(entry.Delta)
			cloned.Log[i] = entry
		}
	}
	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) masked(s map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	return redactMap(s, m.patterns)
}

// redactMap returns a copy of src with matching keys masked, descending into
// nested maps, states and slices. src is never modified.
func redactMap(src map[string]any, patterns []*regexp.Regexp) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if matchesAny(k, patterns) {
			out[k] = Mask
			continue
		}
		out[k] = redactValue(v, patterns)
	}
	return out
}

func redactValue(v any, patterns []*regexp.Regexp) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t, patterns)
	case domain.State:
		return domain.State(redactMap(t, patterns))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = redactValue(e, patterns)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = redactMap(e, patterns)
		}
		return out
	default:
		return v
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
