package backend

import (
	"context"
	"path/filepath"
	"testing"

	"ntes/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Backend.DBPath = filepath.Join(dir, "ntes.db")
	cfg.Backend.BlobDir = filepath.Join(dir, "blobs")
	cfg.Auth.JWTSecret = "secret"
	return cfg
}

func TestOpenAndProbe(t *testing.T) {
	client, err := Open(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer client.Close()

	res := client.Probe(context.Background())
	if !res.Connected || res.Error != "" || len(res.Instructions) != 0 {
		t.Fatalf("unexpected probe result %+v", res)
	}
}

func TestProbeAfterClose(t *testing.T) {
	client, err := Open(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = client.Close()

	res := client.Probe(context.Background())
	if res.Connected || res.Error == "" || len(res.Instructions) == 0 {
		t.Fatalf("expected disconnected result, got %+v", res)
	}
}

func TestProbeNilClient(t *testing.T) {
	var client *Client
	if res := client.Probe(context.Background()); res.Connected {
		t.Fatal("nil client reported connected")
	}
}
