package util

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhone(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"9876543210", 9876543210, true},
		{" 98765-43210 ", 9876543210, true},
		{"+91 98765 43210", 919876543210, true},
		{"0091 98765 43210", 919876543210, true},
		{"12345", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"1234567890123456789", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParsePhone(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone(9876543210))
	assert.True(t, ValidPhone(1000000000))
	assert.False(t, ValidPhone(999999999))
	assert.False(t, ValidPhone(0))
}

func TestNewID(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	id := NewID(at)

	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), parsed.Time())
	assert.NotEqual(t, id, NewID(at))
}
