package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/analytics"
)

// ErrEmptyText is returned when adding a task with blank text.
var ErrEmptyText = errors.New("task text is empty")

// ErrNoTask is returned for an unknown task ID or position.
var ErrNoTask = errors.New("task not found")

// Day holds the ordered task list of a single date. Priorities are kept as
// 1-based positions in the list.
type Day struct {
	client  *Client
	tracker analytics.Tracker
	date    time.Time

	mu    sync.Mutex
	tasks []Task
}

// NewDay creates an empty list for date. Call Load to fetch it.
func NewDay(client *Client, tracker analytics.Tracker, date time.Time) *Day {
	if tracker == nil {
		tracker = analytics.LogTracker{}
	}
	return &Day{client: client, tracker: tracker, date: date}
}

// Date returns the day the list belongs to.
func (d *Day) Date() time.Time {
	return d.date
}

// Tasks returns a copy of the list ordered by priority.
func (d *Day) Tasks() []Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Task, len(d.tasks))
	copy(out, d.tasks)
	return out
}

// Load replaces the list with the server's tasks for the day.
func (d *Day) Load(ctx context.Context) error {
	list, err := d.client.ListByDate(ctx, d.date)
	if err != nil {
		return err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })

	d.mu.Lock()
	d.tasks = list
	d.mu.Unlock()
	return nil
}

// Add creates a task at the end of the list.
func (d *Day) Add(ctx context.Context, text string) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	d.mu.Lock()
	priority := len(d.tasks) + 1
	d.mu.Unlock()

	task, err := d.client.Create(ctx, text, priority, d.date)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.tasks = append(d.tasks, *task)
	d.mu.Unlock()

	d.tracker.Track(ctx, analytics.TaskEvent(analytics.TaskCreated))
	return task, nil
}

// Toggle flips a task's completed flag.
func (d *Day) Toggle(ctx context.Context, id int) (*Task, error) {
	current, err := d.find(id)
	if err != nil {
		return nil, err
	}

	task, err := d.client.SetCompleted(ctx, id, !current.Completed)
	if err != nil {
		return nil, err
	}
	d.replace(*task)

	d.tracker.Track(ctx, analytics.TaskEvent(analytics.TaskCheckedUnchecked))
	return task, nil
}

// Edit changes a task's text. Unchanged text is not sent.
func (d *Day) Edit(ctx context.Context, id int, text string) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	current, err := d.find(id)
	if err != nil {
		return nil, err
	}
	if current.Text == text {
		return &current, nil
	}

	task, err := d.client.EditText(ctx, id, text)
	if err != nil {
		return nil, err
	}
	d.replace(*task)

	d.tracker.Track(ctx, analytics.TaskEvent(analytics.TaskEdited))
	return task, nil
}

// Delete removes a task and closes the gap in priorities. The order is
// resynced even when the delete request fails.
func (d *Day) Delete(ctx context.Context, id int) error {
	if _, err := d.find(id); err != nil {
		return err
	}

	delErr := d.client.Delete(ctx, id)
	if delErr == nil {
		d.mu.Lock()
		for i, t := range d.tasks {
			if t.ID == id {
				d.tasks = append(d.tasks[:i], d.tasks[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
		d.tracker.Track(ctx, analytics.TaskEvent(analytics.TaskDeleted))
	}

	return errors.Join(delErr, d.syncOrder(ctx))
}

// Move repositions the task at index from to index to (both 0-based) and
// sends the resulting priorities.
func (d *Day) Move(ctx context.Context, from, to int) error {
	d.mu.Lock()
	if from < 0 || from >= len(d.tasks) || to < 0 || to >= len(d.tasks) {
		n := len(d.tasks)
		d.mu.Unlock()
		return fmt.Errorf("%w: move %d -> %d in list of %d", ErrNoTask, from, to, n)
	}
	if from == to {
		d.mu.Unlock()
		return nil
	}

	moved := d.tasks[from]
	d.tasks = append(d.tasks[:from], d.tasks[from+1:]...)
	d.tasks = append(d.tasks[:to], append([]Task{moved}, d.tasks[to:]...)...)
	d.mu.Unlock()

	return d.syncOrder(ctx)
}

// syncOrder renumbers the list by position and sends the priorities that
// changed. The drag event is tracked once the server accepts them.
func (d *Day) syncOrder(ctx context.Context) error {
	d.mu.Lock()
	changed := d.reindexLocked()
	d.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	if err := d.client.UpdateOrder(ctx, changed); err != nil {
		return err
	}
	d.tracker.Track(ctx, analytics.TaskEvent(analytics.TaskDragged))
	return nil
}

// ChangedPriorities returns the priority every task would get from its
// current position, limited to those that differ.
func (d *Day) ChangedPriorities() map[int]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	changed := make(map[int]int)
	for i, t := range d.tasks {
		if t.Priority != i+1 {
			changed[t.ID] = i + 1
		}
	}
	return changed
}

func (d *Day) reindexLocked() map[int]int {
	changed := make(map[int]int)
	for i := range d.tasks {
		if d.tasks[i].Priority != i+1 {
			d.tasks[i].Priority = i + 1
			changed[d.tasks[i].ID] = i + 1
		}
	}
	return changed
}

func (d *Day) find(id int) (Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, fmt.Errorf("%w: %d", ErrNoTask, id)
}

func (d *Day) replace(task Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, t := range d.tasks {
		if t.ID == task.ID {
			d.tasks[i] = task
			return
		}
	}
}
