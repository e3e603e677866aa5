package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBuilders(t *testing.T) {
	assert.Equal(t, Event{Name: TaskCreated, Category: "analytics", Label: "Task", Value: 1}, TaskEvent(TaskCreated))
	assert.Equal(t, Event{Name: UserLoggedIn, Category: "analytics", Label: "User", Value: 1}, UserEvent(UserLoggedIn))
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	assert.Empty(t, r.Names())

	r.Track(context.Background(), TaskEvent(TaskDragged))
	r.Track(context.Background(), UserEvent(UserRegistered))

	assert.Equal(t, []string{TaskDragged, UserRegistered}, r.Names())
}

func TestLogTrackerDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		LogTracker{}.Track(context.Background(), TaskEvent(TaskEdited))
	})
}
