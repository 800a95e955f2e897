package app

import (
	"context"
	"log"
)

// EventAwardWindowOpened announces that an activity entered its declared
// award stage. Notification-only; the timeline records the transition
// itself.
const EventAwardWindowOpened = "award.window_opened"

// Event is one semantic notification emitted after a state change has
// committed. Delivery is best-effort: a failed notification never rolls
// back the change that produced it.
type Event struct {
	Type       string
	ActivityID string
	ActorID    *int64
	Payload    map[string]any
}

// Notifier receives committed events for delivery to interested parties
// (authors, reviewers, operators).
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier writes events to the process log. It is the default sink
// when no notification transport is configured.
type LogNotifier struct{}

// Notify logs the event.
func (LogNotifier) Notify(_ context.Context, event Event) {
	log.Printf("event %s activity=%s", event.Type, event.ActivityID)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event)

// Notify calls the wrapped function.
func (f NotifierFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}
