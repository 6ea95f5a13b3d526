package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 30, 45, 123456789, time.FixedZone("X", 7200))

	cursor := EncodeCursor(ts, 42)
	assert.NotContains(t, cursor, "=")

	ts2, id, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, ts.Equal(ts2))
	assert.Equal(t, time.UTC, ts2.Location())
	assert.Equal(t, int64(42), id)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	for _, c := range []string{
		"!!!",
		"",
		enc("1740832245000000000"),
		enc("yesterday:1"),
		enc("1740832245000000000:abc"),
		enc("1740832245000000000:0"),
		enc("1740832245000000000:-7"),
		enc("0:5"),
		enc("-1740832245000000000:5"),
		base64.URLEncoding.EncodeToString([]byte("2025-03-01T12:00:00Z,1")),
	} {
		_, _, err := DecodeCursor(c)
		assert.ErrorIs(t, err, ErrInvalidCursor, "cursor %q", c)
	}
}
