package leave

import (
	"context"
	"log/slog"
)

// =============================================================================
// NOTIFICATION SINK - Fire-and-forget, best-effort
// =============================================================================

// EventKind names a lifecycle event worth telling someone about.
type EventKind string

const (
	EventSubmitted EventKind = "submitted"
	EventApproved  EventKind = "approved"
	EventRejected  EventKind = "rejected"
	EventRevised   EventKind = "revised"
	EventCanceled  EventKind = "canceled"
)

// Event is delivered to the notification sink after a transition
// commits.
type Event struct {
	Kind    EventKind
	Request *Request
}

// Notifier receives lifecycle events. Delivery is best-effort: the
// Service calls it after the accounting transaction commits and only
// logs failures - a broken sink never rolls back accounting.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier is the default sink: it just logs the event.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, e Event) error {
	n.Logger.Info("request event",
		slog.String("event", string(e.Kind)),
		slog.String("request", e.Request.Key.String()),
		slog.String("employee", e.Request.EmployeeID),
		slog.String("status", string(e.Request.Status)),
	)
	return nil
}
