package audit

import (
	"strings"
	"time"
)

// Filter selects entries. Zero-valued fields match everything.
type Filter struct {
	Agent        string
	ActionPrefix string
	Outcome      string
	Since        time.Time
	Until        time.Time
	Offset       int
	Limit        int
}

func (f Filter) matches(e *Entry) bool {
	if f.Agent != "" && e.Agent != f.Agent {
		return false
	}
	if f.ActionPrefix != "" && !strings.HasPrefix(e.Action, f.ActionPrefix) {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Query returns matching entries in chain order, after skipping Offset
// matches and stopping at Limit when it is positive.
func (l *Log) Query(f Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]Entry, 0)
	skipped := 0
	for i := range l.entries {
		e := &l.entries[i]
		if !f.matches(e) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		results = append(results, *e)
		if f.Limit > 0 && len(results) >= f.Limit {
			break
		}
	}
	return results
}
