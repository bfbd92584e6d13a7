package upload

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one file in a batch.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Task is the progress record of one file.
type Task struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Progress int    `json:"progress"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	// Indeterminate is set when the size is unknown and Progress cannot be derived.
	Indeterminate bool `json:"indeterminate,omitempty"`
}

// Batch groups the tasks of one upload request.
type Batch struct {
	ID        string      `json:"id"`
	Category  string      `json:"category"`
	Tasks     []Task      `json:"tasks"`
	Rejected  []Rejection `json:"rejected,omitempty"`
	Settled   bool        `json:"settled"`
	Cleared   bool        `json:"cleared"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (b *Batch) clone() Batch {
	c := *b
	c.Tasks = append([]Task(nil), b.Tasks...)
	c.Rejected = append([]Rejection(nil), b.Rejected...)
	return c
}

// Tracker holds in-flight batches. Tasks keep their index for the life of a batch.
type Tracker struct {
	mu      sync.RWMutex
	batches map[string]*Batch
}

func NewTracker() *Tracker {
	return &Tracker{batches: make(map[string]*Batch)}
}

// Create registers a batch with one pending task per file.
func (t *Tracker) Create(category string, files []File, rejected []Rejection) Batch {
	b := &Batch{
		ID:        uuid.NewString(),
		Category:  category,
		Tasks:     make([]Task, len(files)),
		Rejected:  rejected,
		CreatedAt: time.Now(),
	}
	for i, f := range files {
		b.Tasks[i] = Task{
			ID:            uuid.NewString(),
			Name:          f.Name,
			Size:          f.Size,
			Status:        StatusPending,
			Indeterminate: f.Size <= 0,
		}
	}
	t.mu.Lock()
	t.batches[b.ID] = b
	t.mu.Unlock()
	return b.clone()
}

// Update applies fn to task idx of batch id.
func (t *Tracker) Update(id string, idx int, fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.batches[id]
	if !ok || idx < 0 || idx >= len(b.Tasks) {
		return
	}
	fn(&b.Tasks[idx])
}

// Settle marks that every task reached a terminal state.
func (t *Tracker) Settle(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.batches[id]; ok {
		b.Settled = true
	}
}

// Clear drops the batch; later lookups report it as cleared.
func (t *Tracker) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.batches, id)
}

// Get returns a snapshot of batch id.
func (t *Tracker) Get(id string) (Batch, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.batches[id]
	if !ok {
		return Batch{ID: id, Cleared: true}, false
	}
	return b.clone(), true
}

// Active returns snapshots of every batch still tracked.
func (t *Tracker) Active() []Batch {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Batch, 0, len(t.batches))
	for _, b := range t.batches {
		out = append(out, b.clone())
	}
	return out
}
