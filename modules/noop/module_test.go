package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/burstmission/internal/registry"
)

func TestNoop(t *testing.T) {
	// --- Arrange ---
	r := registry.New()
	(&Module{}).Register(r)
	tool, ok := r.Get("noop")
	require.True(t, ok)
	params := map[string]any{"a": 1, "b": "two"}

	// --- Act ---
	out, err := tool.Invoke(context.Background(), params)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, out)
}
