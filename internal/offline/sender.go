package offline

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"resty.dev/v3"
)

// Sender replays a queued request against the origin.
type Sender interface {
	Send(ctx context.Context, req QueuedRequest) error
}

// RestySender posts queued requests to baseURL.
type RestySender struct {
	client  *resty.Client
	baseURL string
}

func NewRestySender(client *resty.Client, baseURL string) *RestySender {
	if client == nil {
		client = resty.New()
	}
	return &RestySender{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *RestySender) Send(ctx context.Context, req QueuedRequest) error {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	r := s.client.R().
		SetContext(ctx).
		SetHeader("X-Offline-Replay", req.ID).
		SetBody(req.Body)
	if req.ContentType != "" {
		r.SetHeader("Content-Type", req.ContentType)
	}
	resp, err := r.Execute(method, s.baseURL+req.Path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("replay %s %s: status %d", method, req.Path, resp.StatusCode())
	}
	return nil
}
