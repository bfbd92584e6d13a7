// Package app wires the backend, the site handlers, the offline edge and
// the scheduled jobs into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/mileusna/crontab"
	"github.com/redis/go-redis/v9"

	"ntes/internal/admin"
	"ntes/internal/backend"
	"ntes/internal/config"
	"ntes/internal/contact"
	"ntes/internal/content"
	"ntes/internal/gallery"
	"ntes/internal/offline"
	"ntes/internal/storefront"
	"ntes/internal/upload"
)

// App holds every long-lived component. Build it with New and release it with Close.
type App struct {
	cfg config.Config

	Backend  *backend.Client
	Gallery  *gallery.Service
	Content  *content.Service
	Contacts *contact.Service
	Uploads  *upload.Pipeline

	redis *redis.Client
}

// New opens the backend and builds the services described by cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	be, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, Backend: be}

	var cache gallery.ListingCache
	if cfg.Backend.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Backend.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Printf("app: redis %s unreachable, listing cache falls back to the store: %v", cfg.Backend.RedisAddr, err)
		}
		cache = gallery.NewRedisCache(a.redis, cfg.Backend.ListingTTL.Std())
	} else {
		cache = gallery.NewMemoryCache(cfg.Backend.ListingTTL.Std())
	}

	a.Gallery = gallery.New(be.Docs, be.Blobs, cache)
	a.Content = content.New(be.Docs, be.Blobs)
	a.Contacts = contact.New(be.Docs)
	a.Uploads = upload.NewPipeline(a.Gallery, be.Blobs, nil, upload.Options{
		MaxFileSize: int64(cfg.Upload.MaxFileSize),
		Policy: upload.Policy{
			Threshold: int64(cfg.Upload.CompressAbove),
			MaxWidth:  cfg.Upload.MaxWidth,
			MaxPixels: cfg.Upload.MaxPixels,
			Quality:   cfg.Upload.JPEGQuality,
		},
		SettleDelay: cfg.Upload.SettleDelay.Std(),
	})
	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config { return a.cfg }

// Close releases the redis client and the document store.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.Backend.Close())
	return errors.Join(errs...)
}

// Handler is the origin: storefront and admin panel on one mux.
func (a *App) Handler() http.Handler {
	site := storefront.New(a.Content, a.Gallery, a.Contacts, storefront.Options{
		Site:      a.cfg.Site,
		PublicURL: a.cfg.Server.PublicURL,
		Media:     a.Backend.Blobs.Handler(),
		Health: func(ctx context.Context) error {
			if res := a.Backend.Probe(ctx); !res.Connected {
				return errors.New(res.Error)
			}
			return nil
		},
	})
	panel := admin.New(admin.Deps{
		Auth:     a.Backend.Auth,
		Gallery:  a.Gallery,
		Content:  a.Content,
		Contacts: a.Contacts,
		Uploads:  a.Uploads,
		Probe:    a.Backend,
		SpoolDir: filepath.Join(a.cfg.Storage.DataDir, "spool"),
		SiteName: a.cfg.Site.Name,
	})

	mux := http.NewServeMux()
	panel.Routes(mux)
	mux.Handle("/", site.Handler())
	return mux
}

// OpenEdge opens the cache storage under the data dir and builds the
// offline controller in front of the configured origin.
func OpenEdge(cfg config.Config) (*offline.Controller, *offline.Storage, error) {
	store, err := offline.OpenStorage(filepath.Join(cfg.Storage.DataDir, "cache"), int64(cfg.Storage.RAM.Max))
	if err != nil {
		return nil, nil, fmt.Errorf("open cache storage: %w", err)
	}
	off := cfg.Offline
	ctrl, err := offline.New(store, nil, offline.Options{
		Origin:        cfg.Server.Origin,
		StaticCache:   off.StaticCache,
		DynamicCache:  off.DynamicCache,
		StaticFiles:   off.StaticFiles,
		Bypass:        bypassFor(off),
		Live:          liveFor,
		SyncPath:      off.SyncPath,
		InstallRetry:  off.InstallRetry.Std(),
		LogStatsEvery: off.LogStatsEvery.Std(),
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return ctrl, store, nil
}

// bypassFor adds the admin panel, health checks and stored media to the
// configured rules. Panel pages are per-session and media may be deleted.
func bypassFor(off config.Offline) func(rawURL string) bool {
	return func(rawURL string) bool {
		if off.Bypassed(rawURL) {
			return true
		}
		path := pathOf(rawURL)
		switch {
		case path == admin.Prefix, strings.HasPrefix(path, admin.Prefix+"/"), strings.HasPrefix(path, admin.Prefix+"?"):
			return true
		case path == "/healthz", strings.HasPrefix(path, "/healthz?"):
			return true
		case strings.HasPrefix(path, "/media/"):
			return true
		}
		return false
	}
}

// liveFor reports storefront pages rendered from the gallery listing.
func liveFor(rawURL string) bool {
	path := pathOf(rawURL)
	return path == "/" || strings.HasPrefix(path, "/?") || path == "/sitemap.xml"
}

// pathOf strips scheme and host, keeping path and query.
func pathOf(rawURL string) string {
	i := strings.Index(rawURL, "://")
	if i < 0 {
		return rawURL
	}
	rest := rawURL[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return rest[j:]
	}
	if j := strings.IndexByte(rest, '?'); j >= 0 {
		return "/" + rest[j:]
	}
	return "/"
}

// Schedule registers the sync and reconcile jobs on ctab.
func (a *App) Schedule(ctx context.Context, ctab *crontab.Crontab, ctrl *offline.Controller) error {
	if ctrl != nil {
		if err := ctab.AddJob(a.cfg.Jobs.Sync, func() {
			if err := ctrl.Sync(ctx, offline.SyncTag); err != nil {
				log.Printf("app: sync job: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule sync %q: %w", a.cfg.Jobs.Sync, err)
		}
	}
	if err := ctab.AddJob(a.cfg.Jobs.Reconcile, func() {
		a.Reconcile(ctx)
	}); err != nil {
		return fmt.Errorf("schedule reconcile %q: %w", a.cfg.Jobs.Reconcile, err)
	}
	return nil
}

// Reconcile runs one gallery reconciliation pass and logs the outcome.
func (a *App) Reconcile(ctx context.Context) (gallery.ReconcileReport, error) {
	rep, err := a.Gallery.Reconcile(ctx)
	if err != nil {
		log.Printf("app: reconcile: %v", err)
		return rep, err
	}
	log.Printf("app: reconcile: %+v", rep)
	return rep, nil
}

// Serve runs the origin and edge servers until ctx ends, then shuts both down.
func (a *App) Serve(ctx context.Context) error {
	appLn, err := net.Listen("tcp", a.cfg.Server.AppAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.AppAddr, err)
	}
	edgeAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	edgeLn, err := net.Listen("tcp", edgeAddr)
	if err != nil {
		_ = appLn.Close()
		return fmt.Errorf("listen %s: %w", edgeAddr, err)
	}

	ctrl, store, err := OpenEdge(a.cfg)
	if err != nil {
		_ = appLn.Close()
		_ = edgeLn.Close()
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("app: close cache storage: %v", err)
		}
	}()
	defer ctrl.Close()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	ctab := crontab.New()
	defer ctab.Shutdown()
	if err := a.Schedule(ctx, ctab, ctrl); err != nil {
		_ = appLn.Close()
		_ = edgeLn.Close()
		return err
	}

	appSrv := &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 10 * time.Second}
	edgeSrv := &http.Server{Handler: gzhttp.GzipHandler(ctrl), ReadHeaderTimeout: 10 * time.Second}

	serve := func(name string, srv *http.Server, ln net.Listener) {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("app: %s server error: %v", name, err)
			stop()
		}
	}
	go serve("app", appSrv, appLn)
	go serve("edge", edgeSrv, edgeLn)
	log.Printf("ntes listening on %s, app=%s origin=%s", edgeAddr, a.cfg.Server.AppAddr, a.cfg.Server.Origin)

	// The app listener is already accepting, so the first install can precache from it.
	ctrl.Start(ctx)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errs []error
	errs = append(errs, edgeSrv.Shutdown(shutdownCtx))
	errs = append(errs, appSrv.Shutdown(shutdownCtx))
	store.Flush()
	return errors.Join(errs...)
}
