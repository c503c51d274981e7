//go:build property
// +build property

package audit

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestChainProperties checks the tamper-evidence property for arbitrary
// action sequences.
// Property: the recomputed chain ends at ChainHash, and changing any single
// entry changes every hash from that entry on.
func TestChainProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("recomputed chain reproduces the chain hash", prop.ForAll(
		func(actions []string) bool {
			l := New()
			for _, a := range actions {
				if _, err := l.Append(context.Background(), "agent", a, "success"); err != nil {
					return false
				}
			}
			prev := Genesis
			for _, e := range l.Entries() {
				h, err := ComputeHash(prev, &e)
				if err != nil || h != e.Hash {
					return false
				}
				prev = h
			}
			return prev == l.ChainHash()
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("a single mutation changes every later hash", prop.ForAll(
		func(actions []string, pick int) bool {
			if len(actions) == 0 {
				return true
			}
			l := New()
			for _, a := range actions {
				_, _ = l.Append(context.Background(), "agent", a, "success")
			}
			entries := l.Entries()
			k := pick % len(entries)
			entries[k].Outcome = entries[k].Outcome + "!"

			prev := Genesis
			for i := range entries {
				h, err := ComputeHash(prev, &entries[i])
				if err != nil {
					return false
				}
				if i >= k && h == entries[i].Hash {
					return false
				}
				if i < k && h != entries[i].Hash {
					return false
				}
				prev = h
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
