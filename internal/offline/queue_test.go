package offline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestQueueFIFOAndResume(t *testing.T) {
	s, err := OpenMemStorage(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	q, err := NewQueue(s.DB())
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	first, _ := q.Enqueue(QueuedRequest{Method: http.MethodPost, Path: "/api/contacts", Body: []byte("1")})
	second, _ := q.Enqueue(QueuedRequest{Method: http.MethodPost, Path: "/api/contacts", Body: []byte("2")})
	if first >= second {
		t.Fatalf("ids not increasing: %s, %s", first, second)
	}

	again, err := NewQueue(s.DB())
	if err != nil {
		t.Fatalf("reopen queue: %v", err)
	}
	third, _ := again.Enqueue(QueuedRequest{Path: "/api/contacts", Body: []byte("3")})
	if third <= second {
		t.Fatalf("sequence not resumed: %s after %s", third, second)
	}

	items, err := again.List()
	if err != nil || len(items) != 3 {
		t.Fatalf("list = %+v, %v", items, err)
	}
	if string(items[0].Body) != "1" || string(items[2].Body) != "3" || items[0].QueuedAt.IsZero() {
		t.Fatalf("order = %+v", items)
	}
	if err := again.Remove(first); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n := again.Len(); n != 2 {
		t.Fatalf("len = %d", n)
	}
}

func TestRestySenderReplays(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path+" "+r.Header.Get("Content-Type")+" "+r.Header.Get("X-Offline-Replay")+" "+string(b))
		mu.Unlock()
		if r.URL.Path == "/api/broken" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewRestySender(nil, srv.URL+"/")
	err := sender.Send(context.Background(), QueuedRequest{
		ID:          "00000000000000000001",
		Path:        "/api/contacts",
		ContentType: "application/json",
		Body:        []byte(`{"name":"Thabo"}`),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := sender.Send(context.Background(), QueuedRequest{Path: "/api/broken"}); err == nil {
		t.Fatal("expected error for 500 response")
	}

	mu.Lock()
	defer mu.Unlock()
	want := `POST /api/contacts application/json 00000000000000000001 {"name":"Thabo"}`
	if len(seen) != 2 || seen[0] != want {
		t.Fatalf("seen = %q", seen)
	}
}
