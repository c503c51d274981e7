package audit

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a user supplied name (case-insensitive, "yml" accepted)
// to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", s)
	}
}

// Snapshot is the externally verifiable view of a log: its entries and the
// chain hash they must recompute to.
type Snapshot struct {
	ChainHash string  `json:"chain_hash" yaml:"chain_hash"`
	Count     int     `json:"count" yaml:"count"`
	Entries   []Entry `json:"entries" yaml:"entries"`
}

// Snapshot captures entries and head under one read lock.
func (l *Log) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		ChainHash: l.head,
		Count:     len(l.entries),
		Entries:   append([]Entry(nil), l.entries...),
	}
}

var csvHeader = []string{"sequence", "id", "timestamp", "agent", "action", "outcome", "previous_hash", "hash"}

// Export writes the whole log to w. JSON and YAML carry the chain hash
// alongside the entries; CSV holds one row per entry.
func (l *Log) Export(w io.Writer, format Format) error {
	snap := l.Snapshot()

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(snap)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, e := range snap.Entries {
			row := []string{
				strconv.FormatUint(e.Sequence, 10),
				e.ID,
				e.Timestamp.UTC().Format(time.RFC3339Nano),
				e.Agent,
				e.Action,
				e.Outcome,
				e.PreviousHash,
				e.Hash,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported export format: %q", format)
	}
}

// Bundle is a self-describing export whose BundleHash covers its entries.
type Bundle struct {
	BundleID   string    `json:"bundle_id"`
	CreatedAt  time.Time `json:"created_at"`
	EntryCount int       `json:"entry_count"`
	ChainHash  string    `json:"chain_hash"`
	BundleHash string    `json:"bundle_hash"`
	Entries    []Entry   `json:"entries"`
}

// ExportBundle packages the full log into a Bundle.
func (l *Log) ExportBundle() (*Bundle, error) {
	snap := l.Snapshot()
	if snap.Count == 0 {
		return nil, fmt.Errorf("audit log is empty")
	}

	hash, err := bundleHash(snap.Entries)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		BundleID:   uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		EntryCount: snap.Count,
		ChainHash:  snap.ChainHash,
		BundleHash: hash,
		Entries:    snap.Entries,
	}, nil
}

// VerifyBundle checks the bundle hash, the entry count, the chain itself and
// that the chain ends at the recorded chain hash.
func VerifyBundle(b *Bundle) error {
	if b == nil || len(b.Entries) == 0 {
		return fmt.Errorf("bundle is empty")
	}
	if b.EntryCount != len(b.Entries) {
		return fmt.Errorf("bundle declares %d entries but holds %d", b.EntryCount, len(b.Entries))
	}
	computed, err := bundleHash(b.Entries)
	if err != nil {
		return err
	}
	if computed != b.BundleHash {
		return fmt.Errorf("bundle hash mismatch")
	}
	if err := VerifyEntries(b.Entries); err != nil {
		return err
	}
	if last := b.Entries[len(b.Entries)-1].Hash; last != b.ChainHash {
		return fmt.Errorf("%w: bundle chain hash %s does not match last entry %s", ErrChainBroken, b.ChainHash, last)
	}
	return nil
}

func bundleHash(entries []Entry) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bundle entries: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
