package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/analytics"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)

// fakeAPI is an in-memory task backend that accepts a single valid access
// token and rotates it on refresh.
type fakeAPI struct {
	t *testing.T

	mu       sync.Mutex
	valid    string
	tasks    map[int]*Task
	nextID   int
	orders   []map[string]int
	requests []string
	auths    []string

	refreshN    atomic.Int32
	refreshFail bool
	deleteFail  bool
	refreshGate chan struct{}
	refreshIn   chan struct{}
}

func newFakeAPI(t *testing.T, valid string, initial ...Task) *fakeAPI {
	f := &fakeAPI{t: t, valid: valid, tasks: make(map[int]*Task), nextID: 100}
	for i := range initial {
		task := initial[i]
		f.tasks[task.ID] = &task
	}
	return f
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /"+auth.RefreshPath, f.refresh)
	mux.HandleFunc("GET /task/", f.authorized(f.list))
	mux.HandleFunc("POST /task/", f.authorized(f.create))
	mux.HandleFunc("PATCH /task/update-order/", f.authorized(f.updateOrder))
	mux.HandleFunc("PATCH /task/{id}/", f.authorized(f.update))
	mux.HandleFunc("DELETE /task/{id}/", f.authorized(f.remove))
	return mux
}

func (f *fakeAPI) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		header := r.Header.Get("Authorization")
		f.auths = append(f.auths, header)
		ok := header == "Bearer "+f.valid
		if ok {
			f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		}
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
			return
		}
		next(w, r)
	}
}

func (f *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	f.refreshN.Add(1)
	if f.refreshIn != nil {
		f.refreshIn <- struct{}{}
	}
	if f.refreshGate != nil {
		<-f.refreshGate
	}
	if f.refreshFail {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token is blacklisted"}`))
		return
	}
	f.mu.Lock()
	f.valid = "A2"
	f.mu.Unlock()
	_, _ = w.Write([]byte(`{"access_token":"A2","refresh_token":"R2"}`))
}

func (f *fakeAPI) list(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, testDate.Format(DateLayout), r.URL.Query().Get("selected_date"))
	f.mu.Lock()
	list := make([]Task, 0, len(f.tasks))
	for _, task := range f.tasks {
		list = append(list, *task)
	}
	f.mu.Unlock()
	// Unordered on purpose; the client sorts by priority.
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	_ = json.NewEncoder(w).Encode(list)
}

func (f *fakeAPI) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text     string `json:"text"`
		Priority int    `json:"priority"`
		PostedAt string `json:"posted_at"`
	}
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	assert.Equal(f.t, testDate.Format(DateLayout), body.PostedAt)

	f.mu.Lock()
	f.nextID++
	task := &Task{ID: f.nextID, Text: body.Text, Priority: body.Priority, CreatedAt: Timestamp{testDate}}
	f.tasks[task.ID] = task
	out := *task
	f.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(out)
}

func (f *fakeAPI) update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	var body map[string]any
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Task not found"}`))
		return
	}
	if v, ok := body["completed"].(bool); ok {
		task.Completed = v
	}
	if v, ok := body["text"].(string); ok {
		task.Text = v
	}
	_ = json.NewEncoder(w).Encode(task)
}

func (f *fakeAPI) remove(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	f.mu.Lock()
	if f.deleteFail {
		f.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"database is locked"}`))
		return
	}
	delete(f.tasks, id)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) updateOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Priorities map[string]int `json:"priorities"`
	}
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	f.mu.Lock()
	f.orders = append(f.orders, body.Priorities)
	for key, priority := range body.Priorities {
		id, _ := strconv.Atoi(key)
		if task, ok := f.tasks[id]; ok {
			task.Priority = priority
		}
	}
	f.mu.Unlock()
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (f *fakeAPI) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

type fixture struct {
	api     *fakeAPI
	session *auth.Session
	store   *auth.MemoryStore
	client  *Client
	tracker *analytics.Recorder
}

// newFixture serves api and logs in with access token A1.
func newFixture(t *testing.T, api *fakeAPI) *fixture {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	httpClient, err := executor.NewClient(executor.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	store := auth.NewMemoryStore()
	creds, err := auth.NewCredential([]byte(`{"access_token":"A1","refresh_token":"R1"}`))
	require.NoError(t, err)
	require.NoError(t, store.Save(creds))

	tracker := &analytics.Recorder{}
	session := auth.NewSession(auth.SessionConfig{Client: httpClient, Store: store, Tracker: tracker})
	httpClient.Use(session.Policy())
	session.Restore()

	return &fixture{
		api:     api,
		session: session,
		store:   store,
		client:  NewClient(httpClient, store),
		tracker: tracker,
	}
}

func (fx *fixture) day(t *testing.T) *Day {
	t.Helper()
	day := NewDay(fx.client, fx.tracker, testDate)
	require.NoError(t, day.Load(context.Background()))
	return day
}

func threeTasks() []Task {
	return []Task{
		{ID: 1, Priority: 1, Text: "first"},
		{ID: 2, Priority: 2, Text: "second"},
		{ID: 3, Priority: 3, Text: "third"},
	}
}

func ids(list []Task) []int {
	out := make([]int, len(list))
	for i, task := range list {
		out[i] = task.ID
	}
	return out
}

func TestDay_LoadSortsByPriority(t *testing.T) {
	fx := newFixture(t, newFakeAPI(t, "A1", threeTasks()...))

	day := fx.day(t)

	assert.Equal(t, []int{1, 2, 3}, ids(day.Tasks()))
	assert.Equal(t, testDate, day.Date())
}

func TestDay_Add(t *testing.T) {
	fx := newFixture(t, newFakeAPI(t, "A1", threeTasks()...))
	day := fx.day(t)

	task, err := day.Add(context.Background(), "  buy milk  ")

	require.NoError(t, err)
	assert.Equal(t, "buy milk", task.Text)
	assert.Equal(t, 4, task.Priority)
	assert.Len(t, day.Tasks(), 4)
	assert.Equal(t, []string{analytics.TaskCreated}, fx.tracker.Names())

	_, err = day.Add(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Len(t, fx.api.requestLog(), 2, "blank text is not sent")
}

func TestDay_ToggleAndEdit(t *testing.T) {
	fx := newFixture(t, newFakeAPI(t, "A1", threeTasks()...))
	day := fx.day(t)
	ctx := context.Background()

	task, err := day.Toggle(ctx, 2)
	require.NoError(t, err)
	assert.True(t, task.Completed)
	assert.True(t, day.Tasks()[1].Completed)

	task, err = day.Edit(ctx, 2, "second, edited")
	require.NoError(t, err)
	assert.Equal(t, "second, edited", task.Text)

	before := len(fx.api.requestLog())
	_, err = day.Edit(ctx, 2, "second, edited")
	require.NoError(t, err)
	assert.Len(t, fx.api.requestLog(), before, "unchanged text is not sent")

	_, err = day.Toggle(ctx, 99)
	assert.ErrorIs(t, err, ErrNoTask)

	assert.Equal(t, []string{analytics.TaskCheckedUnchecked, analytics.TaskEdited}, fx.tracker.Names())
}

func TestDay_DeleteReindexes(t *testing.T) {
	fx := newFixture(t, newFakeAPI(t, "A1", threeTasks()...))
	day := fx.day(t)

	require.NoError(t, day.Delete(context.Background(), 1))

	assert.Equal(t, []int{2, 3}, ids(day.Tasks()))
	assert.Equal(t, 1, day.Tasks()[0].Priority)
	assert.Equal(t, 2, day.Tasks()[1].Priority)
	require.Len(t, fx.api.orders, 1)
	assert.Equal(t, map[string]int{"2": 1, "3": 2}, fx.api.orders[0])
	assert.Equal(t, []string{analytics.TaskDeleted, analytics.TaskDragged}, fx.tracker.Names())
}

func TestDay_DeleteFailureStillResyncsOrder(t *testing.T) {
	api := newFakeAPI(t, "A1",
		Task{ID: 1, Priority: 1, Text: "first"},
		Task{ID: 2, Priority: 3, Text: "second"},
		Task{ID: 3, Priority: 4, Text: "third"},
	)
	api.deleteFail = true
	fx := newFixture(t, api)
	day := fx.day(t)

	err := day.Delete(context.Background(), 2)

	var statusErr *executor.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, []int{1, 2, 3}, ids(day.Tasks()))
	require.Len(t, api.orders, 1)
	assert.Equal(t, map[string]int{"2": 2, "3": 3}, api.orders[0])
	assert.Equal(t, []string{analytics.TaskDragged}, fx.tracker.Names())
}

func TestDay_DeleteLastSendsNoOrder(t *testing.T) {
	fx := newFixture(t, newFakeAPI(t, "A1", threeTasks()...))
	day := fx.day(t)

	require.NoError(t, day.Delete(context.Background(), 3))

	assert.Empty(t, fx.api.orders)
	assert.Equal(t, []string{analytics.TaskDeleted}, fx.tracker.Names())
}

func TestDay_Move(t *testing.T) {
	fx := newFixture(t, newFakeAPI(t, "A1", threeTasks()...))
	day := fx.day(t)

	require.NoError(t, day.Move(context.Background(), 2, 0))

	assert.Equal(t, []int{3, 1, 2}, ids(day.Tasks()))
	assert.Empty(t, day.ChangedPriorities())
	require.Len(t, fx.api.orders, 1)
	assert.Equal(t, map[string]int{"3": 1, "1": 2, "2": 3}, fx.api.orders[0])
	assert.Equal(t, []string{analytics.TaskDragged}, fx.tracker.Names())

	assert.ErrorIs(t, day.Move(context.Background(), 0, 5), ErrNoTask)
	require.NoError(t, day.Move(context.Background(), 1, 1))
	assert.Len(t, fx.api.orders, 1, "moving in place sends nothing")
}

func TestClient_RefreshesExpiredToken(t *testing.T) {
	api := newFakeAPI(t, "A2", threeTasks()...)
	fx := newFixture(t, api)

	list, err := fx.client.ListByDate(context.Background(), testDate)

	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, int32(1), api.refreshN.Load())
	assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, api.auths)

	creds, err := fx.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "A2", creds.AccessToken())
	assert.Equal(t, "R2", creds.RefreshToken())

	_, err = fx.client.ListByDate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.refreshN.Load(), "new token is used directly")
}

func TestClient_ConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	api := newFakeAPI(t, "A2", threeTasks()...)
	api.refreshGate = make(chan struct{})
	api.refreshIn = make(chan struct{}, 1)
	fx := newFixture(t, api)

	const requests = 2
	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.client.ListByDate(context.Background(), testDate)
		}(i)
	}

	<-api.refreshIn
	time.Sleep(50 * time.Millisecond)
	close(api.refreshGate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), api.refreshN.Load())

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"GET /task/", "GET /task/"}, api.requests, "both retries carry the new token")
}

func TestClient_RefreshFailureLogsOut(t *testing.T) {
	api := newFakeAPI(t, "A2", threeTasks()...)
	api.refreshFail = true
	fx := newFixture(t, api)

	_, err := fx.client.ListByDate(context.Background(), testDate)

	require.Error(t, err)
	assert.True(t, auth.IsRefreshFailure(err))
	assert.False(t, fx.session.IsAuthenticated())
	creds, _ := fx.store.Load()
	assert.Nil(t, creds)
	assert.Empty(t, auth.BuildAuthHeader(fx.store))
}

func TestClient_UpdateOrderBody(t *testing.T) {
	api := newFakeAPI(t, "A1", threeTasks()...)
	fx := newFixture(t, api)

	require.NoError(t, fx.client.UpdateOrder(context.Background(), map[int]int{1: 3, 3: 1}))

	require.Len(t, api.orders, 1)
	assert.Equal(t, map[string]int{"1": 3, "3": 1}, api.orders[0])
}
