package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "YAML": FormatYAML, ".yml": FormatYAML, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestLog_Export(t *testing.T) {
	l := New()
	appendN(t, l, 3)

	t.Run("json snapshot verifies externally", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, l.Export(&buf, FormatJSON))

		var snap Snapshot
		require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
		assert.Equal(t, l.ChainHash(), snap.ChainHash)
		assert.Equal(t, 3, snap.Count)
		require.NoError(t, VerifyEntries(snap.Entries))
		assert.Equal(t, snap.ChainHash, snap.Entries[2].Hash)
	})

	t.Run("yaml snapshot verifies externally", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, l.Export(&buf, FormatYAML))

		var snap Snapshot
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &snap))
		assert.Equal(t, l.ChainHash(), snap.ChainHash)
		assert.NoError(t, VerifyEntries(snap.Entries))
	})

	t.Run("csv has a header and one row per entry", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, l.Export(&buf, FormatCSV))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, csvHeader, rows[0])
		assert.Equal(t, "1", rows[1][0])
		assert.Equal(t, l.ChainHash(), rows[3][7])
	})

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, l.Export(&bytes.Buffer{}, Format("xml")))
	})
}

func TestBundle(t *testing.T) {
	t.Run("empty log cannot be bundled", func(t *testing.T) {
		_, err := New().ExportBundle()
		assert.Error(t, err)
	})

	l := New()
	appendN(t, l, 4)

	b, err := l.ExportBundle()
	require.NoError(t, err)
	assert.Equal(t, 4, b.EntryCount)
	assert.Equal(t, l.ChainHash(), b.ChainHash)

	t.Run("round-tripped bundle verifies", func(t *testing.T) {
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		var decoded Bundle
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.NoError(t, VerifyBundle(&decoded))
	})

	t.Run("tampered entry fails the bundle hash", func(t *testing.T) {
		tampered := *b
		tampered.Entries = append([]Entry(nil), b.Entries...)
		tampered.Entries[1].Action = "hidden"
		assert.ErrorContains(t, VerifyBundle(&tampered), "bundle hash mismatch")
	})

	t.Run("rehashed tampered bundle still fails the chain", func(t *testing.T) {
		tampered := *b
		tampered.Entries = append([]Entry(nil), b.Entries...)
		tampered.Entries[1].Action = "hidden"
		tampered.BundleHash, err = bundleHash(tampered.Entries)
		require.NoError(t, err)
		assert.ErrorIs(t, VerifyBundle(&tampered), ErrChainBroken)
	})

	t.Run("wrong count", func(t *testing.T) {
		tampered := *b
		tampered.EntryCount = 9
		assert.Error(t, VerifyBundle(&tampered))
	})
}
