// Package analytics records user-facing product events.
package analytics

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Event names.
const (
	TaskCreated          = "task-created"
	TaskDeleted          = "task-deleted"
	TaskCheckedUnchecked = "task-checked-unchecked"
	TaskDragged          = "task-dragged"
	TaskEdited           = "task-edited"
	UserLoggedIn         = "user-logged-in"
	UserGoogleLogIn      = "user-google-log-in"
	UserRegistered       = "user-registered"
)

// Event is a single tracked action.
type Event struct {
	Name     string
	Category string
	Label    string
	Value    int
}

// Tracker receives events. Implementations must not block the caller for long
// and must not fail the action being tracked.
type Tracker interface {
	Track(ctx context.Context, event Event)
}

// TaskEvent builds an event for a task action.
func TaskEvent(name string) Event {
	return Event{Name: name, Category: "analytics", Label: "Task", Value: 1}
}

// UserEvent builds an event for an account action.
func UserEvent(name string) Event {
	return Event{Name: name, Category: "analytics", Label: "User", Value: 1}
}

// LogTracker writes events to the logger.
type LogTracker struct{}

// Track implements Tracker.
func (LogTracker) Track(_ context.Context, event Event) {
	log.WithFields(log.Fields{
		"event":    event.Name,
		"category": event.Category,
		"label":    event.Label,
		"value":    event.Value,
	}).Info("Tracked event")
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Track implements Tracker.
func (r *Recorder) Track(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Names returns the names of the recorded events in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name)
	}
	return names
}
