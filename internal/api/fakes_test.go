package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/auth"
	"github.com/ashveil/jobscout/internal/queue"
	"github.com/ashveil/jobscout/internal/relay"
	"github.com/ashveil/jobscout/internal/store"
	"github.com/ashveil/jobscout/internal/task"
)

// memStore is an in-memory TaskStore for handler tests.
type memStore struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
}

func newMemStore() *memStore {
	return &memStore{tasks: map[string]*task.Task{}}
}

func (m *memStore) CreateTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.Status = task.StatusPending
	m.tasks[t.ID] = &cp
	t.Status = task.StatusPending
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return store.ErrConflict
	}
	delete(m.tasks, id)
	return nil
}

func (m *memStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// setStatus moves a stored task into a given state for test setup.
func (m *memStore) setStatus(id string, status task.Status, result, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.Status = status
		t.Result = result
		t.Error = errMsg
	}
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

var errAMQPDown = errors.New("broker connection refused")

// memBroker records enqueued jobs and can be told to fail.
type memBroker struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (b *memBroker) Enqueue(_ context.Context, job *queue.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.jobs = append(b.jobs, job)
	return nil
}

func (b *memBroker) jobCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// memRelay is a channel-based pub/sub hub standing in for Redis.
type memRelay struct {
	mu     sync.Mutex
	subs   map[string][]*memSource
	subErr error
}

func newMemRelay() *memRelay {
	return &memRelay{subs: map[string][]*memSource{}}
}

type sourceItem struct {
	ev  *task.Event
	err error
}

type memSource struct {
	hub    *memRelay
	taskID string
	ch     chan sourceItem
}

func (m *memRelay) Subscribe(_ context.Context, taskID string) (EventSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return nil, m.subErr
	}
	src := &memSource{hub: m, taskID: taskID, ch: make(chan sourceItem, 64)}
	m.subs[taskID] = append(m.subs[taskID], src)
	return src, nil
}

// publish fans an event out to every live subscriber of the channel.
// With no subscriber it is a no-op, matching pub/sub drop semantics.
func (m *memRelay) publish(taskID string, ev *task.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, src := range m.subs[taskID] {
		src.ch <- sourceItem{ev: ev}
	}
}

// publishMalformed simulates an undecodable payload arriving on the channel.
func (m *memRelay) publishMalformed(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, src := range m.subs[taskID] {
		src.ch <- sourceItem{err: relay.ErrMalformedEvent}
	}
}

func (m *memRelay) subCount(taskID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[taskID])
}

func (s *memSource) Next(ctx context.Context, timeout time.Duration) (*task.Event, error) {
	select {
	case it := <-s.ch:
		return it.ev, it.err
	case <-time.After(timeout):
		return nil, relay.ErrNoEvent
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memSource) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	live := s.hub.subs[s.taskID][:0]
	for _, src := range s.hub.subs[s.taskID] {
		if src != s {
			live = append(live, src)
		}
	}
	s.hub.subs[s.taskID] = live
	return nil
}

// newTestHandler wires a Handler with in-memory deps.
func newTestHandler(t *testing.T) (*Handler, *memStore, *memBroker, *memRelay) {
	t.Helper()
	st := newMemStore()
	broker := &memBroker{}
	hub := newMemRelay()
	authSvc := auth.NewService("test-secret", "analyst", "hunter2")
	h := NewHandler(st, broker, hub, authSvc, false, zap.NewNop())
	h.pollInterval = 10 * time.Millisecond
	return h, st, broker, hub
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func postForm(t *testing.T, ts *httptest.Server, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func validSubmission() map[string]interface{} {
	return map[string]interface{}{
		"country":           "India",
		"city":              "Pune",
		"job_role":          "Data Scientist",
		"include_skills":    true,
		"include_salaries":  true,
		"include_companies": false,
		"include_trends":    true,
	}
}
