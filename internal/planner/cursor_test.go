package planner

import (
	"encoding/base64"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		c    cursor
	}{
		{name: "distance", c: cursor{mode: modeDistance, key: math.Float64bits(0.4231), id: "entity-17"}},
		{name: "recency", c: cursor{mode: modeRecency, key: 1724572800, id: "a"}},
		{name: "empty id", c: cursor{mode: modeRecency, key: 42, id: ""}},
		{name: "zero key", c: cursor{mode: modeDistance, key: 0, id: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := encodeCursor(tt.c)

			got, err := decodeCursor(token)
			require.NoError(t, err)
			assert.Equal(t, tt.c, got)
		})
	}
}

func TestCursorTokenIsURLSafe(t *testing.T) {
	token := encodeCursor(cursor{mode: modeDistance, key: math.MaxUint64, id: "??//++=="})

	assert.False(t, strings.ContainsAny(token, "+/="))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	// A valid version with an unknown sort mode.
	badMode := base64.RawURLEncoding.EncodeToString(append([]byte{cursorVersion, 99}, make([]byte, 8)...))
	// An unknown version byte.
	badVersion := base64.RawURLEncoding.EncodeToString(append([]byte{77, modeDistance}, make([]byte, 8)...))
	// Correct base64 but too short to hold the sort key.
	short := base64.RawURLEncoding.EncodeToString([]byte{cursorVersion, modeDistance, 1, 2})

	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "!!not base64!!"},
		{name: "truncated", token: short},
		{name: "bad version", token: badVersion},
		{name: "bad mode", token: badMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCursor(tt.token)

			var badErr *ErrBadCursor
			require.ErrorAs(t, err, &badErr)
			assert.NotEmpty(t, badErr.Reason)
		})
	}
}

func TestAcceptsDistance(t *testing.T) {
	c := cursor{mode: modeDistance, key: math.Float64bits(0.5), id: "m"}

	assert.True(t, c.acceptsDistance(0.75, "a"), "strictly farther always passes")
	assert.False(t, c.acceptsDistance(0.25, "z"), "strictly closer never passes")
	assert.True(t, c.acceptsDistance(0.5, "n"), "same distance, later id")
	assert.False(t, c.acceptsDistance(0.5, "m"), "the cursor row itself")
	assert.False(t, c.acceptsDistance(0.5, "l"), "same distance, earlier id")
}

func TestAcceptsRecency(t *testing.T) {
	c := cursor{mode: modeRecency, key: 1000, id: "m"}

	assert.True(t, c.acceptsRecency(900, "a"), "strictly older always passes")
	assert.False(t, c.acceptsRecency(1100, "z"), "strictly newer never passes")
	assert.True(t, c.acceptsRecency(1000, "n"), "same timestamp, later id")
	assert.False(t, c.acceptsRecency(1000, "m"), "the cursor row itself")
	assert.False(t, c.acceptsRecency(1000, "l"), "same timestamp, earlier id")
}
