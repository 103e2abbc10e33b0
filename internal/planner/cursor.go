package planner

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/knowgo/model"
)

// Cursor sort modes. A cursor is only valid for the sort order it was
// issued under: distance-ascending for similarity queries, createdAt-
// descending otherwise.
const (
	modeDistance byte = 1
	modeRecency  byte = 2
)

const cursorVersion byte = 1

// ErrBadCursor indicates a cursor token that is not ours, is damaged, or
// belongs to a query with a different sort order.
type ErrBadCursor struct {
	Reason string
}

func (e *ErrBadCursor) Error() string {
	return fmt.Sprintf("invalid cursor: %s", e.Reason)
}

// cursor is the decoded continuation point: the sort key and entity id of
// the last row of the previous page.
type cursor struct {
	mode byte
	key  uint64 // Float64bits of the distance, or the createdAt timestamp
	id   model.EntityID
}

// acceptsDistance reports whether a hit sorts strictly after the cursor in
// distance-ascending order.
func (c *cursor) acceptsDistance(d float32, id model.EntityID) bool {
	last := math.Float64frombits(c.key)
	if dd := float64(d); dd != last {
		return dd > last
	}
	return id > c.id
}

// acceptsRecency reports whether a hit sorts strictly after the cursor in
// createdAt-descending order.
func (c *cursor) acceptsRecency(ts int64, id model.EntityID) bool {
	if last := int64(c.key); ts != last {
		return ts < last
	}
	return id > c.id
}

// encodeCursor packs a cursor into an opaque URL-safe token:
// version, mode, big-endian sort key, entity id.
func encodeCursor(c cursor) string {
	buf := make([]byte, 0, 10+len(c.id))
	buf = append(buf, cursorVersion, c.mode)
	buf = binary.BigEndian.AppendUint64(buf, c.key)
	buf = append(buf, c.id...)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func decodeCursor(token string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, &ErrBadCursor{Reason: "not a cursor token"}
	}
	if len(raw) < 10 {
		return cursor{}, &ErrBadCursor{Reason: "truncated token"}
	}
	if raw[0] != cursorVersion {
		return cursor{}, &ErrBadCursor{Reason: fmt.Sprintf("unknown version %d", raw[0])}
	}

	mode := raw[1]
	if mode != modeDistance && mode != modeRecency {
		return cursor{}, &ErrBadCursor{Reason: fmt.Sprintf("unknown sort mode %d", mode)}
	}

	return cursor{
		mode: mode,
		key:  binary.BigEndian.Uint64(raw[2:10]),
		id:   model.EntityID(raw[10:]),
	}, nil
}
