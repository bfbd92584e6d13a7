package offline

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const queuePrefix = "q:"

// QueuedRequest is a write captured while the origin was unreachable.
type QueuedRequest struct {
	ID          string
	Method      string
	Path        string
	ContentType string
	Body        []byte
	QueuedAt    time.Time
}

// Queue is a durable FIFO of requests awaiting replay.
type Queue struct {
	db *leveldb.DB

	mu  sync.Mutex
	seq uint64
}

// NewQueue opens the queue stored in db, resuming its sequence.
func NewQueue(db *leveldb.DB) (*Queue, error) {
	q := &Queue{db: db}
	it := db.NewIterator(util.BytesPrefix([]byte(queuePrefix)), nil)
	defer it.Release()
	if it.Last() {
		n, err := strconv.ParseUint(string(bytes.TrimPrefix(it.Key(), []byte(queuePrefix))), 10, 64)
		if err == nil {
			q.seq = n
		}
	}
	return q, it.Error()
}

// Enqueue appends req and returns its id.
func (q *Queue) Enqueue(req QueuedRequest) (string, error) {
	q.mu.Lock()
	q.seq++
	id := fmt.Sprintf("%020d", q.seq)
	q.mu.Unlock()

	req.ID = id
	if req.QueuedAt.IsZero() {
		req.QueuedAt = time.Now()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(req); err != nil {
		return "", err
	}
	if err := q.db.Put([]byte(queuePrefix+id), buf.Bytes(), nil); err != nil {
		return "", err
	}
	return id, nil
}

// List returns queued requests oldest first. Unreadable records are skipped.
func (q *Queue) List() ([]QueuedRequest, error) {
	it := q.db.NewIterator(util.BytesPrefix([]byte(queuePrefix)), nil)
	defer it.Release()
	var out []QueuedRequest
	for it.Next() {
		var req QueuedRequest
		if err := gob.NewDecoder(bytes.NewReader(it.Value())).Decode(&req); err != nil {
			continue
		}
		out = append(out, req)
	}
	return out, it.Error()
}

// Remove deletes a replayed request.
func (q *Queue) Remove(id string) error {
	return q.db.Delete([]byte(queuePrefix+id), nil)
}

// Len counts queued requests.
func (q *Queue) Len() int {
	n := 0
	it := q.db.NewIterator(util.BytesPrefix([]byte(queuePrefix)), nil)
	defer it.Release()
	for it.Next() {
		n++
	}
	return n
}
