package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ntes.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Origin != "http://127.0.0.1:8081" {
		t.Fatalf("origin = %q", cfg.Server.Origin)
	}
	if cfg.Offline.StaticCache != "ntes-static-v1" || cfg.Offline.DynamicCache != "ntes-dynamic-v1" {
		t.Fatalf("cache names = %q/%q", cfg.Offline.StaticCache, cfg.Offline.DynamicCache)
	}
	want := []string{"/", "/manifest.json", "/favicon.ico"}
	if strings.Join(cfg.Offline.StaticFiles, ",") != strings.Join(want, ",") {
		t.Fatalf("static files = %v", cfg.Offline.StaticFiles)
	}
	if cfg.Upload.MaxFileSize.Int64() != 50<<20 {
		t.Fatalf("max file size = %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Upload.CompressAbove.Int64() != 2<<20 {
		t.Fatalf("compress above = %d", cfg.Upload.CompressAbove)
	}
	if cfg.Upload.MaxWidth != 1920 || cfg.Upload.MaxPixels != 50_000_000 {
		t.Fatalf("max width = %d, max pixels = %d", cfg.Upload.MaxWidth, cfg.Upload.MaxPixels)
	}
	if cfg.Backend.DBPath != filepath.Join("data", "ntes.db") {
		t.Fatalf("db path = %q", cfg.Backend.DBPath)
	}
	if !*cfg.Auth.DemoEnabled {
		t.Fatal("expected demo login enabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  origin: https://origin.example.test/
storage:
  ram:
    max: 8mb
offline:
  staticCache: site-static-v2
  dynamicCache: site-dynamic-v2
  bypass:
    - "PathPrefix(/admin) | Contains(googleapis.com)"
upload:
  maxFileSize: 10 MiB
  settleDelay: 250ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.Origin != "https://origin.example.test" {
		t.Fatalf("origin = %q", cfg.Server.Origin)
	}
	if cfg.Storage.RAM.Max.Int64() != 8<<20 {
		t.Fatalf("ram max = %d", cfg.Storage.RAM.Max)
	}
	if cfg.Upload.MaxFileSize.Int64() != 10<<20 {
		t.Fatalf("max file size = %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Upload.SettleDelay.Std() != 250*time.Millisecond {
		t.Fatalf("settle delay = %s", cfg.Upload.SettleDelay.Std())
	}
	if !cfg.Offline.Bypassed("/admin/gallery") {
		t.Fatal("expected /admin/gallery bypassed")
	}
	if !cfg.Offline.Bypassed("https://firestore.googleapis.com/v1/x") {
		t.Fatal("expected googleapis bypassed")
	}
	if cfg.Offline.Bypassed("/api/contacts") {
		t.Fatal("custom bypass list replaces the defaults")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"origin":      "server:\n  origin: ftp://x\n",
		"same caches": "offline:\n  staticCache: a\n  dynamicCache: a\n",
		"bypass":      "offline:\n  bypass: [\"Regex(.*)\"]\n",
		"static path": "offline:\n  staticFiles: [\"manifest.json\"]\n",
		"quality":     "upload:\n  jpegQuality: 101\n",
		"size":        "upload:\n  maxFileSize: lots\n",
		"duration":    "upload:\n  settleDelay: soon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDefaultBypass(t *testing.T) {
	cfg := Default()
	for _, u := range []string{
		"/api/contacts",
		"http://127.0.0.1:8081/api/gallery?x=1",
		"https://firestore.googleapis.com/google.firestore.v1.Firestore/Listen",
	} {
		if !cfg.Offline.Bypassed(u) {
			t.Fatalf("expected %q bypassed", u)
		}
	}
	for _, u := range []string{"/", "/manifest.json", "/static/site.css", "/media/gallery/x.jpg"} {
		if cfg.Offline.Bypassed(u) {
			t.Fatalf("did not expect %q bypassed", u)
		}
	}
}

func TestParseBytes(t *testing.T) {
	cases := map[string]int64{
		"50mb":   50 << 20,
		"2 MiB":  2 << 20,
		"512k":   512 << 10,
		"1gb":    1 << 30,
		"100":    100,
		"100b":   100,
		"1.5kb":  1536,
		" 3 mb ": 3 << 20,
	}
	for in, want := range cases {
		got, err := ParseBytes(in)
		if err != nil {
			t.Fatalf("ParseBytes(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseBytes(%q) = %d, want %d", in, got, want)
		}
	}
	for _, bad := range []string{"", "b", "-1mb", "tenmb"} {
		if _, err := ParseBytes(bad); err == nil {
			t.Fatalf("ParseBytes(%q): expected error", bad)
		}
	}
}

func TestLoadWithOverrides(t *testing.T) {
	v := viper.New()
	v.Set(KeyPort, 7070)
	v.Set(KeyDataDir, "/var/lib/ntes")
	v.Set(KeyJWTSecret, "s3cret")

	cfg, err := LoadWithOverrides("", v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Backend.DBPath != filepath.Join("/var/lib/ntes", "ntes.db") {
		t.Fatalf("db path = %q", cfg.Backend.DBPath)
	}
	if cfg.Backend.BlobDir != filepath.Join("/var/lib/ntes", "blobs") {
		t.Fatalf("blob dir = %q", cfg.Backend.BlobDir)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
}
