package knowgo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/knowgo/model"
)

// Logger wraps slog.Logger with knowgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithID adds an entity id field to the logger (useful for tagging operations).
func (l *Logger) WithID(id model.EntityID) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", string(id)),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, id model.EntityID, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"id", string(id),
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"id", string(id),
			"dimension", dimension,
		)
	}
}

// LogBatchInsert logs a batch insert operation.
func (l *Logger) LogBatchInsert(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch insert completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch insert completed",
			"count", count,
		)
	}
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, id model.EntityID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"id", string(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"id", string(id),
		)
	}
}

// LogDelete logs a delete operation and the relationships it cascaded to.
func (l *Logger) LogDelete(ctx context.Context, id model.EntityID, cascaded int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"id", string(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"id", string(id),
			"cascaded", cascaded,
		)
	}
}

// LogQuery logs a query operation.
func (l *Logger) LogQuery(ctx context.Context, hits int, partial bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"hits", hits,
			"partial", partial,
		)
	}
}

// LogTraverse logs a graph traversal.
func (l *Logger) LogTraverse(ctx context.Context, starts, reached int, partial bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "traversal failed",
			"starts", starts,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "traversal completed",
			"starts", starts,
			"reached", reached,
			"partial", partial,
		)
	}
}

// LogRelate logs a relate operation.
func (l *Logger) LogRelate(ctx context.Context, id model.RelationshipID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "relate failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "relate completed",
			"id", string(id),
		)
	}
}

// LogUnrelate logs an unrelate operation.
func (l *Logger) LogUnrelate(ctx context.Context, id model.RelationshipID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "unrelate failed",
			"id", string(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "unrelate completed",
			"id", string(id),
		)
	}
}

// LogCompaction logs a vector index compaction.
func (l *Logger) LogCompaction(ctx context.Context, tombstones int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "compaction completed",
			"tombstones", tombstones,
		)
	}
}

// LogSnapshot logs a snapshot save.
func (l *Logger) LogSnapshot(ctx context.Context, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"snapshot", id,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"snapshot", id,
		)
	}
}

// LogLoad logs a snapshot load.
func (l *Logger) LogLoad(ctx context.Context, entities int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"entities", entities,
		)
	}
}
