package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrint(t *testing.T) {
	testCases := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{name: "message only", params: map[string]any{"message": "hello"}, want: "      hello\n"},
		{name: "nothing", params: map[string]any{}, want: "      (null)\n"},
		{
			name:   "map value sorted",
			params: map[string]any{"message": "env", "value": map[string]any{"b": 2, "a": "x"}},
			want:   "      env\n      a = x\n      b = 2\n",
		},
		{name: "scalar value", params: map[string]any{"value": 42}, want: "      42\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			var buf bytes.Buffer
			m := &Module{Out: &buf}

			// --- Act ---
			out, err := m.Print(context.Background(), tc.params)

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, tc.want, buf.String())
			assert.Equal(t, tc.params["message"] != nil, out != "")
		})
	}
}
