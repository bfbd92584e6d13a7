package contact

import (
	"context"
	"path/filepath"
	"testing"

	"ntes/internal/apperr"
	"ntes/internal/docstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	docs, err := docstore.Open(context.Background(), filepath.Join(t.TempDir(), "ntes.db"))
	if err != nil {
		t.Fatalf("open docs: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	return New(docs)
}

func TestSubmit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	got, err := svc.Submit(ctx, Form{Name: " Sipho ", Email: "sipho@example.com", Service: "CV Writing", Message: "Please call me"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != docstore.ContactStatusNew || got.Name != "Sipho" || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected contact %+v", got)
	}
	list, err := svc.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v, %v", list, err)
	}
	if err := svc.SetStatus(ctx, got.ID, "replied"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := svc.SetStatus(ctx, got.ID, "archived"); !apperr.HasCode(err, apperr.CodeInvalidArgument) {
		t.Fatalf("unknown status: %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		name string
		form Form
		msg  string
	}{
		{"missing name", Form{Email: "a@b.co", Message: "hi"}, "Name is required."},
		{"missing email", Form{Name: "A", Message: "hi"}, "Email is required."},
		{"bad email", Form{Name: "A", Email: "nope", Message: "hi"}, "Email address is invalid."},
		{"missing message", Form{Name: "A", Email: "a@b.co", Message: "   "}, "Message is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.form)
			if !apperr.HasCode(err, apperr.CodeInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
			if got := apperr.UserMessage(err); got != tt.msg {
				t.Fatalf("message = %q, want %q", got, tt.msg)
			}
		})
	}
	list, _ := svc.List(context.Background())
	if len(list) != 0 {
		t.Fatalf("invalid forms were stored: %+v", list)
	}
}
