package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/gofiber/fiber/v3"
)

// Job states.
const (
	JobRunning  = "running"
	JobComplete = "complete"
	JobError    = "error"
)

// JobStatus represents the current state of a background job.
type JobStatus struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Status      string             `json:"status"`
	Stage       string             `json:"stage"`
	Stages      []string           `json:"completed_stages"`
	Stats       *domain.IndexStats `json:"stats,omitempty"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at,omitempty"`
}

func (j JobStatus) done() bool {
	return j.Status == JobComplete || j.Status == JobError
}

// JobTracker manages jobs in memory.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
	subs map[string][]chan JobStatus
}

// NewJobTracker creates a new job tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs: make(map[string]*JobStatus),
		subs: make(map[string][]chan JobStatus),
	}
}

// CreateJob registers a running job.
func (t *JobTracker) CreateJob(id, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &JobStatus{
		ID:        id,
		Kind:      kind,
		Status:    JobRunning,
		Stages:    []string{},
		StartedAt: time.Now(),
	}
}

// Advance moves a running job to stage.
func (t *JobTracker) Advance(id, stage string) {
	t.update(id, func(job *JobStatus) {
		if job.Stage != "" {
			job.Stages = append(job.Stages, job.Stage)
		}
		job.Stage = stage
	})
}

// Complete marks the job finished, failed when err is non-nil.
func (t *JobTracker) Complete(id string, stats *domain.IndexStats, err error) {
	t.update(id, func(job *JobStatus) {
		if err != nil {
			job.Status = JobError
			job.Error = err.Error()
		} else {
			if job.Stage != "" {
				job.Stages = append(job.Stages, job.Stage)
			}
			job.Status = JobComplete
			job.Stats = stats
		}
		job.CompletedAt = time.Now()
	})
}

func (t *JobTracker) update(id string, fn func(job *JobStatus)) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	fn(job)
	snapshot := *job
	snapshot.Stages = append([]string(nil), job.Stages...)
	subs := append([]chan JobStatus(nil), t.subs[id]...)
	t.mu.Unlock()

	for _, ch := range subs {
		deliver(ch, snapshot)
	}
}

// deliver never blocks. Intermediate updates are dropped when ch is full; a
// finished job evicts stale updates so the terminal state always arrives.
func deliver(ch chan JobStatus, status JobStatus) {
	for {
		select {
		case ch <- status:
			return
		default:
		}
		if !status.done() {
			return
		}
		select {
		case <-ch:
		default:
		}
	}
}

// GetJob returns a job status.
func (t *JobTracker) GetJob(id string) (*JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	snapshot.Stages = append([]string(nil), job.Stages...)
	return &snapshot, true
}

// Subscribe returns a channel that receives job updates.
func (t *JobTracker) Subscribe(id string) chan JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan JobStatus, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes a channel from subscribers.
func (t *JobTracker) Unsubscribe(id string, ch chan JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[id]) == 0 {
		delete(t.subs, id)
	}
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	tracker *JobTracker
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(tracker *JobTracker) *JobsHandler {
	return &JobsHandler{tracker: tracker}
}

// Register sets up job routes.
func (h *JobsHandler) Register(router fiber.Router) {
	jobs := router.Group("/jobs")
	jobs.Get("/:id", h.GetStatus)
	jobs.Get("/:id/stream", h.StreamSSE)
}

// GetStatus returns the current job status.
func (h *JobsHandler) GetStatus(c fiber.Ctx) error {
	job, ok := h.tracker.GetJob(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}

// StreamSSE streams job updates via Server-Sent Events.
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("id")

	ch := h.tracker.Subscribe(id)
	job, ok := h.tracker.GetJob(id)
	if !ok {
		h.tracker.Unsubscribe(id, ch)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	if job.done() {
		h.tracker.Unsubscribe(id, ch)
		return c.SendString(sseEvent(job.Status, *job))
	}

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.tracker.Unsubscribe(id, ch)

		fmt.Fprint(w, sseEvent("progress", *job))
		if err := w.Flush(); err != nil {
			return
		}

		timeout := time.After(5 * time.Minute)
		for {
			select {
			case update := <-ch:
				eventType := "progress"
				if update.done() {
					eventType = update.Status
				}
				fmt.Fprint(w, sseEvent(eventType, update))
				if err := w.Flush(); err != nil {
					return
				}
				if update.done() {
					return
				}
			case <-timeout:
				slog.Warn("SSE timeout", "job_id", id)
				return
			}
		}
	})
}

func sseEvent(event string, job JobStatus) string {
	data, _ := json.Marshal(job)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}
