package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/burstmission/internal/ctxlog"
)

var (
	// ErrChainBroken reports a hash chain that does not recompute.
	ErrChainBroken = errors.New("hash chain is broken")
	// ErrSink reports an entry that was chained in memory but could not be
	// written to one of the attached sinks.
	ErrSink = errors.New("audit sink write failed")
	// ErrNotEmpty is returned by Restore on a log that already has entries.
	ErrNotEmpty = errors.New("audit log is not empty")
)

// Sink receives every appended entry in chain order.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Entry) error

func (f SinkFunc) Write(ctx context.Context, e Entry) error { return f(ctx, e) }

// Log is an append-only audit log with hash chaining. It is safe for
// concurrent use: appends are serialized, reads share a lock.
type Log struct {
	mu       sync.RWMutex
	entries  []Entry
	head     string
	sequence uint64
	sinks    []Sink

	// Sink delivery is ordered by ticket. Tickets are issued under mu in
	// chain order; delivery waits on turn without holding mu, so readers and
	// later appends are never stalled behind sink I/O.
	sinkMu    sync.Mutex
	turn      *sync.Cond
	issued    uint64
	delivered uint64

	now func() time.Time
}

// New creates an empty log whose head is Genesis.
func New() *Log {
	l := &Log{
		head: Genesis,
		now:  func() time.Time { return time.Now().UTC() },
	}
	l.turn = sync.NewCond(&l.sinkMu)
	return l
}

// AddSink attaches a sink. Only entries appended afterwards are delivered.
func (l *Log) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Append records one action. Reading the head, hashing and appending happen
// in a single critical section, so concurrent appends can never fork the
// chain. Sinks then receive the entry in chain order, outside that
// section. The returned error is non-nil only when a sink failed; the entry
// is part of the chain regardless.
func (l *Log) Append(ctx context.Context, agent, action, outcome string) (Entry, error) {
	l.mu.Lock()
	e := Entry{
		Sequence:     l.sequence + 1,
		ID:           uuid.NewString(),
		Agent:        agent,
		Action:       action,
		Outcome:      outcome,
		Timestamp:    l.now(),
		PreviousHash: l.head,
	}
	hash, err := ComputeHash(l.head, &e)
	if err != nil {
		l.mu.Unlock()
		return Entry{}, fmt.Errorf("failed to compute entry hash: %w", err)
	}
	e.Hash = hash

	l.sequence = e.Sequence
	l.head = e.Hash
	l.entries = append(l.entries, e)
	sinks := l.sinks
	if len(sinks) == 0 {
		l.mu.Unlock()
		return e, nil
	}
	ticket := l.issued
	l.issued++
	l.mu.Unlock()

	return e, l.deliver(ctx, ticket, sinks, e)
}

// deliver writes e to sinks once every earlier ticket has been delivered.
func (l *Log) deliver(ctx context.Context, ticket uint64, sinks []Sink, e Entry) error {
	l.sinkMu.Lock()
	for l.delivered != ticket {
		l.turn.Wait()
	}
	defer func() {
		l.delivered++
		l.turn.Broadcast()
		l.sinkMu.Unlock()
	}()

	var errs []error
	for _, s := range sinks {
		if err := s.Write(ctx, e); err != nil {
			ctxlog.FromContext(ctx).Error("Audit sink write failed.", "sequence", e.Sequence, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrSink, errors.Join(errs...))
	}
	return nil
}

// ChainHash returns the hash of the most recent entry, or Genesis when the
// log is empty.
func (l *Log) ChainHash() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the full sequence.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Verify recomputes the chain from the first entry and checks that it ends
// at the current head.
func (l *Log) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := VerifyEntries(l.entries); err != nil {
		return err
	}
	if n := len(l.entries); n > 0 && l.entries[n-1].Hash != l.head {
		return fmt.Errorf("%w: head %s does not match last entry %s", ErrChainBroken, l.head, l.entries[n-1].Hash)
	}
	return nil
}

// Restore loads a previously persisted chain into an empty log after
// verifying it. Appends continue from the restored head.
func (l *Log) Restore(entries []Entry) error {
	if err := VerifyEntries(entries); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > 0 {
		return ErrNotEmpty
	}
	if len(entries) == 0 {
		return nil
	}
	l.entries = append([]Entry(nil), entries...)
	last := entries[len(entries)-1]
	l.head = last.Hash
	l.sequence = last.Sequence
	return nil
}
