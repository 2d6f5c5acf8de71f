package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONBody(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want *string
	}{
		{name: "binary prefix", body: []byte("\x00\x01prefix{\"a\":1}"), want: ptr(`{"a":1}`)},
		{name: "plain json", body: []byte(`{"id":7}`), want: ptr(`{"id":7}`)},
		{name: "no brace", body: []byte("plain text"), want: nil},
		{name: "empty", body: nil, want: nil},
		{name: "first brace wins", body: []byte(`x{"a":{"b":2}}`), want: ptr(`{"a":{"b":2}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSONBody(tt.body)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestExtractJSONBody_ReplacesInvalidUTF8(t *testing.T) {
	got := ExtractJSONBody([]byte{'{', 0xff, '}'})
	require.NotNil(t, got)
	assert.Equal(t, "{\uFFFD}", *got)
}

func TestNodeIsActiveAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Node{HealthCheck: now.Add(-4 * time.Minute)}.IsActiveAt(now))
	assert.False(t, Node{HealthCheck: now.Add(-6 * time.Minute)}.IsActiveAt(now))
	assert.False(t, Node{HealthCheck: now.Add(-5 * time.Minute)}.IsActiveAt(now))
}

func ptr(s string) *string { return &s }
