// Package observability provides structured logging, metrics, and tracing
// for eventfold reductions.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// LogFoldStart logs the start of a fold, with raw and canonical event counts.
func LogFoldStart(logger *slog.Logger, machine string, rawEvents, canonicalEvents int) {
	if logger == nil {
		return
	}
	logger.Debug("fold starting",
		slog.String("machine", machine),
		slog.Int("raw_events", rawEvents),
		slog.Int("canonical_events", canonicalEvents),
	)
}

// LogFoldComplete logs a completed fold.
func LogFoldComplete(logger *slog.Logger, machine, finalState string, events, anomalies int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("fold completed",
		slog.String("machine", machine),
		slog.String("final_state", finalState),
		slog.Int("events", events),
		slog.Int("anomalies", anomalies),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFoldAborted logs a fold that failed on a contract violation or a
// strict-mode anomaly.
func LogFoldAborted(logger *slog.Logger, machine string, err error) {
	if logger == nil {
		return
	}
	logger.Error("fold aborted",
		slog.String("machine", machine),
		slog.String("error", err.Error()),
	)
}

// LogAnomaly logs one recoverable irregularity recorded during a fold.
func LogAnomaly(logger *slog.Logger, machine, eventID, kind, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("fold anomaly",
		slog.String("machine", machine),
		slog.String("event_id", eventID),
		slog.String("kind", kind),
		slog.String("reason", reason),
	)
}

// LogConflictResolved logs the outcome of a concurrent-group resolution.
func LogConflictResolved(logger *slog.Logger, aggregateID, winnerID, outcome, note string) {
	if logger == nil {
		return
	}
	logger.Info("conflict resolved",
		slog.String("aggregate_id", aggregateID),
		slog.String("winner_id", winnerID),
		slog.String("outcome", outcome),
		slog.String("note", note),
	)
}

// LogAppend logs an event accepted into a store.
func LogAppend(logger *slog.Logger, aggregateID, eventID string, lamport uint64) {
	if logger == nil {
		return
	}
	logger.Debug("event appended",
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", eventID),
		slog.Uint64("lamport_clock", lamport),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
