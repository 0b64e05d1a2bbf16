package audit

import (
	"context"
	"log/slog"
	"time"

	"circles/pkg/domain"
)

// Recorder stamps and publishes audit events. Emission is non-fatal: a sink
// outage costs a log line, never a failed circle operation. A nil publisher
// yields a no-op recorder.
type Recorder struct {
	publisher Publisher
	clock     func() time.Time
	logger    *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock overrides the timestamp source. Tests use this to pin
// event times.
func WithRecorderClock(clock func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRecorderLogger overrides the default logger.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecorder builds a recorder emitting to publisher.
func NewRecorder(publisher Publisher, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		publisher: publisher,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Record emits an event for action by userID acting on subject.
func (r *Recorder) Record(ctx context.Context, action Action, userID domain.UserID, subject, outcome string) {
	r.RecordReason(ctx, action, userID, subject, outcome, "")
}

// RecordReason is Record with an operational cause attached, used for
// denials and law violations.
func (r *Recorder) RecordReason(ctx context.Context, action Action, userID domain.UserID, subject, outcome, reason string) {
	if r.publisher == nil {
		return
	}
	event := NewEvent(action, userID, subject, outcome, r.clock())
	event.Reason = reason
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Error("audit publish failed",
			"action", action,
			"category", event.Category,
			"error", err)
	}
}
