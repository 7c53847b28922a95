package jsonref

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplace(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{
			name:    "top level field",
			in:      `{"client_id":"tmp-1","total":12.50}`,
			want:    `{"client_id":"42","total":12.50}`,
			changed: true,
		},
		{
			name:    "nested and arrays",
			in:      `{"lines":[{"product":"tmp-1"},{"product":"7"}],"refs":["tmp-1"]}`,
			want:    `{"lines":[{"product":"42"},{"product":"7"}],"refs":["42"]}`,
			changed: true,
		},
		{
			name:    "substring is not a reference",
			in:      `{"note":"see tmp-1 later"}`,
			want:    `{"note":"see tmp-1 later"}`,
			changed: false,
		},
		{
			name:    "keys are not rewritten",
			in:      `{"tmp-1":true}`,
			want:    `{"tmp-1":true}`,
			changed: false,
		},
		{
			name:    "no mention",
			in:      `{"a":1}`,
			want:    `{"a":1}`,
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed, err := Replace(json.RawMessage(tt.in), "tmp-1", "42")
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			assert.JSONEq(t, tt.want, string(out))
		})
	}
}

func TestReplace_InvalidJSON(t *testing.T) {
	raw := json.RawMessage(`{"a":"tmp-1"`)
	out, changed, err := Replace(raw, "tmp-1", "42")
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, raw, out)
}

func TestReplace_Empty(t *testing.T) {
	out, changed, err := Replace(nil, "tmp-1", "42")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, out)
}
