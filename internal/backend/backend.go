// Package backend builds the client context every component shares: the
// document store, the object store and the auth service.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ntes/internal/auth"
	"ntes/internal/blobstore"
	"ntes/internal/config"
	"ntes/internal/docstore"
)

// Client is constructed once at startup and passed to each component.
type Client struct {
	Docs  *docstore.Store
	Blobs *blobstore.Store
	Auth  *auth.Service
}

// Open connects every backend service described by cfg.
func Open(ctx context.Context, cfg config.Config) (*Client, error) {
	docs, err := docstore.Open(ctx, cfg.Backend.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	blobs, err := blobstore.Open(cfg.Backend.BlobDir, cfg.Backend.MediaPrefix)
	if err != nil {
		_ = docs.Close()
		return nil, fmt.Errorf("open object store: %w", err)
	}
	demo := cfg.Auth.DemoEnabled == nil || *cfg.Auth.DemoEnabled
	authSvc, err := auth.New(docs, auth.Options{
		Secret:       cfg.Auth.JWTSecret,
		SessionTTL:   cfg.Auth.SessionTTL.Std(),
		DemoEmail:    cfg.Auth.DemoEmail,
		DemoPassword: cfg.Auth.DemoPassword,
		DemoEnabled:  demo,
		AllowSignup:  cfg.Auth.AllowSignup,
	})
	if err != nil {
		_ = docs.Close()
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		log.Printf("backend: auth.jwtSecret not set, admin sessions will not survive a restart")
	}
	return &Client{Docs: docs, Blobs: blobs, Auth: authSvc}, nil
}

// Close releases the document store.
func (c *Client) Close() error {
	if c == nil || c.Docs == nil {
		return nil
	}
	return c.Docs.Close()
}

// ProbeResult is the connectivity verdict shown on the admin landing view.
type ProbeResult struct {
	Connected    bool
	Error        string
	Instructions []string
	Latency      time.Duration
}

// SetupInstructions are shown when the probe fails.
var SetupInstructions = []string{
	"Set backend.dbPath to a writable location for the document database.",
	"Set backend.blobDir to a writable directory for uploaded images.",
	"Restart the server with the updated configuration file (--config).",
	"Sign in with the demo account or run `ntes admin create` to provision an admin.",
}

// Probe writes and deletes a document in the test collection and checks the object store.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	start := time.Now()
	err := c.probe(ctx)
	res := ProbeResult{Connected: err == nil, Latency: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
		res.Instructions = SetupInstructions
	}
	return res
}

func (c *Client) probe(ctx context.Context) error {
	if c == nil || c.Docs == nil || c.Blobs == nil {
		return errors.New("backend is not configured")
	}
	id, err := c.Docs.PutProbe(ctx)
	if err != nil {
		return err
	}
	if err := c.Docs.DeleteProbe(ctx, id); err != nil {
		return err
	}
	if err := c.Blobs.Walk(ctx, "test", func(blobstore.Object) error { return nil }); err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	return nil
}
