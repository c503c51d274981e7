package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// Genesis is the predecessor hash of the first entry.
const Genesis = "genesis"

// Entry is one immutable audit record.
type Entry struct {
	Sequence     uint64    `json:"sequence" yaml:"sequence"`
	ID           string    `json:"id" yaml:"id"`
	Agent        string    `json:"agent" yaml:"agent"`
	Action       string    `json:"action" yaml:"action"`
	Outcome      string    `json:"outcome" yaml:"outcome"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	PreviousHash string    `json:"previous_hash" yaml:"previous_hash"`
	Hash         string    `json:"hash" yaml:"hash"`
}

// hashable is the content covered by an entry's hash. PreviousHash is
// prepended to the serialized content rather than included in it.
type hashable struct {
	Sequence  uint64 `json:"sequence"`
	ID        string `json:"id"`
	Agent     string `json:"agent"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	Timestamp string `json:"timestamp"`
}

// Canonical returns the canonical JSON (RFC 8785) serialization of the
// entry's hashed content.
func (e *Entry) Canonical() ([]byte, error) {
	raw, err := json.Marshal(hashable{
		Sequence:  e.Sequence,
		ID:        e.ID,
		Agent:     e.Agent,
		Action:    e.Action,
		Outcome:   e.Outcome,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry for hashing: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize entry: %w", err)
	}
	return canonical, nil
}

// ComputeHash returns hex(sha256(previousHash || canonical(e))).
func ComputeHash(previousHash string, e *Entry) (string, error) {
	content, err := e.Canonical()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(previousHash))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyEntries recomputes the chain from Genesis and returns an error
// wrapping ErrChainBroken at the first entry whose links or hash disagree.
func VerifyEntries(entries []Entry) error {
	expectedPrev := Genesis
	for i := range entries {
		e := &entries[i]
		if e.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has previous_hash %s but expected %s",
				ErrChainBroken, i, e.PreviousHash, expectedPrev)
		}
		computed, err := ComputeHash(expectedPrev, e)
		if err != nil {
			return fmt.Errorf("%w: entry %d hash computation failed: %w", ErrChainBroken, i, err)
		}
		if computed != e.Hash {
			return fmt.Errorf("%w: entry %d hash mismatch (computed %s, stored %s)",
				ErrChainBroken, i, computed, e.Hash)
		}
		expectedPrev = e.Hash
	}
	return nil
}
