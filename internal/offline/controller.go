// Package offline is the caching edge in front of the storefront. It keeps
// a precached static set and a dynamic set filled on demand, serves cached
// pages while the origin is down and queues contact submissions for replay.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Default cache set names.
const (
	StaticCacheName  = "ntes-static-v1"
	DynamicCacheName = "ntes-dynamic-v1"
	// LegacyCacheName was used by the previous release. It is only ever evicted.
	LegacyCacheName = "ntes-v1"
)

// SyncTag names the contact form replay.
const SyncTag = "contact-form-sync"

const maxQueuedBody = 1 << 20

// State is the lifecycle of the controller's current install.
type State int32

const (
	StateNew State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "new"
	}
}

// Options configures a Controller.
type Options struct {
	// Origin is the absolute base URL requests are forwarded to.
	Origin       string
	StaticCache  string
	DynamicCache string
	StaticFiles  []string
	// Bypass reports URLs that must always go to the network.
	Bypass func(rawURL string) bool
	// Live reports pages rendered from live data. They are fetched from
	// the origin first and served from cache only while it is unreachable.
	Live          func(rawURL string) bool
	SyncPath      string
	InstallRetry  time.Duration
	LogStatsEvery time.Duration
	Client        *http.Client
}

func (o *Options) applyDefaults() error {
	if o.StaticCache == "" {
		o.StaticCache = StaticCacheName
	}
	if o.DynamicCache == "" {
		o.DynamicCache = DynamicCacheName
	}
	if len(o.StaticFiles) == 0 {
		o.StaticFiles = []string{"/", "/manifest.json", "/favicon.ico"}
	}
	if o.Bypass == nil {
		o.Bypass = DefaultBypass
	}
	if o.SyncPath == "" {
		o.SyncPath = "/api/contacts"
	}
	if o.InstallRetry <= 0 {
		o.InstallRetry = 30 * time.Second
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 30 * time.Second}
	}
	u, err := url.Parse(strings.TrimRight(o.Origin, "/"))
	if err != nil || u.Host == "" {
		return fmt.Errorf("offline: origin must be an absolute URL, got %q", o.Origin)
	}
	o.Origin = u.String()
	return nil
}

// DefaultBypass excludes API calls and the hosted database endpoint.
func DefaultBypass(rawURL string) bool {
	return strings.Contains(rawURL, "/api/") || strings.Contains(rawURL, "firestore.googleapis.com")
}

// Controller is the edge handler and owns the cache lifecycle.
type Controller struct {
	opts   Options
	origin *url.URL
	client *http.Client
	store  *Storage
	queue  *Queue
	sender Sender

	state       atomic.Int32
	controlling atomic.Bool

	stats *statsCollector

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a controller. A sender may be nil, in which case queued
// requests are replayed to the origin with resty.
func New(store *Storage, sender Sender, opts Options) (*Controller, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	origin, _ := url.Parse(opts.Origin)
	queue, err := NewQueue(store.DB())
	if err != nil {
		return nil, fmt.Errorf("open offline queue: %w", err)
	}
	if sender == nil {
		sender = NewRestySender(nil, opts.Origin)
	}

	client := *opts.Client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	c := &Controller{
		opts:   opts,
		origin: origin,
		client: &client,
		store:  store,
		queue:  queue,
		sender: sender,
		stats:  newStatsCollector(),
		stopCh: make(chan struct{}),
	}
	// A set activated by an earlier run keeps controlling until a new install succeeds.
	if store.Has(opts.StaticCache) {
		c.controlling.Store(true)
	}
	return c, nil
}

// State reports the lifecycle state of the latest install.
func (c *Controller) State() State { return State(c.state.Load()) }

// Controlling reports whether requests are intercepted.
func (c *Controller) Controlling() bool { return c.controlling.Load() }

// Storage exposes the cache storage.
func (c *Controller) Storage() *Storage { return c.store }

// Queue exposes the offline request queue.
func (c *Controller) Queue() *Queue { return c.queue }

// Stats returns request outcome counters.
func (c *Controller) Stats() Stats { return c.stats.Snapshot() }

// Install precaches every static file. All files are stored or none are.
func (c *Controller) Install(ctx context.Context) error {
	c.state.Store(int32(StateInstalling))

	entries := make([]CacheEntry, len(c.opts.StaticFiles))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range c.opts.StaticFiles {
		g.Go(func() error {
			ent, err := c.fetch(gctx, http.MethodGet, c.opts.Origin+p, nil, nil)
			if err != nil {
				return fmt.Errorf("precache %s: %w", p, err)
			}
			if ent.Status != http.StatusOK {
				return fmt.Errorf("precache %s: status %d", p, ent.Status)
			}
			entries[i] = ent
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.state.Store(int32(StateRedundant))
		return err
	}

	if err := c.store.Open(c.opts.StaticCache); err != nil {
		c.state.Store(int32(StateRedundant))
		return err
	}
	for i, p := range c.opts.StaticFiles {
		if err := c.store.PutSync(c.opts.StaticCache, p, entries[i]); err != nil {
			c.state.Store(int32(StateRedundant))
			return fmt.Errorf("store %s: %w", p, err)
		}
	}
	c.state.Store(int32(StateInstalled))
	log.Printf("offline: installed %d static files into %s", len(entries), c.opts.StaticCache)
	return nil
}

// Activate evicts every cache set other than the current static and
// dynamic sets, then starts intercepting requests.
func (c *Controller) Activate() error {
	c.state.Store(int32(StateActivating))
	var errs []error
	for _, name := range c.store.Keys() {
		if name == c.opts.StaticCache || name == c.opts.DynamicCache {
			continue
		}
		if _, err := c.store.Delete(name); err != nil {
			errs = append(errs, fmt.Errorf("delete cache %s: %w", name, err))
			continue
		}
		log.Printf("offline: deleted old cache %s", name)
	}
	c.state.Store(int32(StateActivated))
	c.controlling.Store(true)
	return errors.Join(errs...)
}

// Start installs and activates in the background, retrying failed installs
// until ctx ends or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			err := c.Install(ctx)
			if err == nil {
				if err := c.Activate(); err != nil {
					log.Printf("offline: activate: %v", err)
				}
				return
			}
			log.Printf("offline: install failed, retrying in %s: %v", c.opts.InstallRetry, err)
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-time.After(c.opts.InstallRetry):
			}
		}
	}()

	if c.opts.LogStatsEvery > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.statsLoop(c.opts.LogStatsEvery)
		}()
	}
}

// Close stops background loops. The storage is owned by the caller.
func (c *Controller) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Controller) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			st := c.stats.Snapshot()
			ss := c.store.Stats()
			rss := "n/a"
			if b, ok := processRSSBytes(); ok {
				rss = humanize.IBytes(b)
			}
			log.Printf(
				"offline: state=%s sets=%d entries=%d ram=%s disk=%s queued=%d hits=%d misses=%d offline=%d resp min/avg/max=%s/%s/%s rss=%s",
				c.State(), ss.Sets, ss.Entries,
				humanize.IBytes(uint64(ss.RAMBytes)), humanize.IBytes(uint64(ss.DiskBytes)),
				c.queue.Len(), st.Hits, st.Misses, st.Offline,
				humanize.IBytes(st.MinRespBytes), humanize.IBytes(st.AvgRespBytes), humanize.IBytes(st.MaxRespBytes),
				rss,
			)
		}
	}
}

// ServeHTTP applies the fetch policy to one request.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !c.controlling.Load() {
		c.passThrough(w, r, c.targetURL(r))
		return
	}

	target := c.targetURL(r)
	if r.URL.IsAbs() && !c.sameOrigin(r.URL) {
		c.passThrough(w, r, target)
		return
	}
	if c.opts.Bypass(target) || r.Method != http.MethodGet {
		c.networkOnly(w, r, target)
		return
	}

	key := r.URL.RequestURI()
	if c.opts.Live != nil && c.opts.Live(target) {
		c.networkFirst(w, r, target, key)
		return
	}
	if ent, ok := c.lookup(key); ok {
		c.write(w, ent, OutcomeHit)
		return
	}

	ent, err := c.fetch(r.Context(), http.MethodGet, target, r.Header, nil)
	if err != nil {
		c.offlineFallback(w, r, err)
		return
	}
	if ent.Status != http.StatusOK || ent.Type != TypeBasic {
		c.write(w, ent, OutcomeBypass)
		return
	}
	c.store.Put(c.opts.DynamicCache, key, ent)
	c.write(w, ent, OutcomeMiss)
}

// Sync runs the background replay registered under tag.
func (c *Controller) Sync(ctx context.Context, tag string) error {
	if tag != SyncTag {
		log.Printf("offline: ignoring unknown sync tag %q", tag)
		return nil
	}
	items, err := c.queue.List()
	if err != nil {
		log.Printf("offline: sync %s: read queue: %v", tag, err)
		return err
	}
	sent := 0
	for _, item := range items {
		if err := c.sender.Send(ctx, item); err != nil {
			log.Printf("offline: sync %s: replay %s: %v", tag, item.ID, err)
			continue
		}
		if err := c.queue.Remove(item.ID); err != nil {
			log.Printf("offline: sync %s: dequeue %s: %v", tag, item.ID, err)
			continue
		}
		sent++
	}
	if len(items) > 0 {
		log.Printf("offline: sync %s: replayed %d/%d", tag, sent, len(items))
	}
	return nil
}

func (c *Controller) targetURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	return c.opts.Origin + r.URL.RequestURI()
}

func (c *Controller) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.origin.Scheme) && strings.EqualFold(u.Host, c.origin.Host)
}

func (c *Controller) passThrough(w http.ResponseWriter, r *http.Request, target string) {
	ent, err := c.fetch(r.Context(), r.Method, target, r.Header, r.Body)
	if err != nil {
		c.badGateway(w, err)
		return
	}
	c.write(w, ent, OutcomeBypass)
}

// networkOnly forwards without touching the cache. A failed contact
// submission is queued for replay instead of failing.
func (c *Controller) networkOnly(w http.ResponseWriter, r *http.Request, target string) {
	queueable := r.Method == http.MethodPost && r.URL.Path == c.opts.SyncPath
	var body io.Reader = r.Body
	var buf []byte
	if queueable {
		var err error
		buf, err = io.ReadAll(io.LimitReader(r.Body, maxQueuedBody))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body = bytes.NewReader(buf)
	}

	ent, err := c.fetch(r.Context(), r.Method, target, r.Header, body)
	if err == nil {
		c.write(w, ent, OutcomeBypass)
		return
	}
	if !queueable {
		c.badGateway(w, err)
		return
	}
	id, qerr := c.queue.Enqueue(QueuedRequest{
		Method:      r.Method,
		Path:        r.URL.RequestURI(),
		ContentType: r.Header.Get("Content-Type"),
		Body:        buf,
	})
	if qerr != nil {
		log.Printf("offline: enqueue %s: %v", r.URL.Path, qerr)
		c.badGateway(w, err)
		return
	}
	log.Printf("offline: origin unreachable, queued %s as %s for %s", r.URL.Path, id, SyncTag)
	c.stats.Observe(OutcomeQueued, 0)
	setCacheHeader(w.Header(), OutcomeQueued)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprintf(w, `{"queued":true,"id":%q}`, id)
}

// lookup searches the static set first, then the dynamic set, then any
// set an earlier release left behind.
func (c *Controller) lookup(key string) (CacheEntry, bool) {
	ent, _, ok := c.store.Match(key, c.opts.StaticCache, c.opts.DynamicCache)
	return ent, ok
}

func (c *Controller) networkFirst(w http.ResponseWriter, r *http.Request, target, key string) {
	ent, err := c.fetch(r.Context(), http.MethodGet, target, r.Header, nil)
	if err != nil {
		if cached, ok := c.lookup(key); ok {
			c.write(w, cached, OutcomeOffline)
			return
		}
		c.offlineFallback(w, r, err)
		return
	}
	if ent.Status != http.StatusOK || ent.Type != TypeBasic {
		c.write(w, ent, OutcomeBypass)
		return
	}
	set := c.opts.DynamicCache
	if slices.Contains(c.opts.StaticFiles, key) {
		set = c.opts.StaticCache
	}
	c.store.Put(set, key, ent)
	c.write(w, ent, OutcomeRefresh)
}

func (c *Controller) offlineFallback(w http.ResponseWriter, r *http.Request, fetchErr error) {
	if isDocumentRequest(r) {
		if ent, ok := c.lookup("/"); ok {
			c.write(w, ent, OutcomeOffline)
			return
		}
	}
	c.badGateway(w, fetchErr)
}

func isDocumentRequest(r *http.Request) bool {
	if dest := r.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest == "document"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (c *Controller) badGateway(w http.ResponseWriter, err error) {
	log.Printf("offline: origin fetch failed: %v", err)
	c.stats.Observe(OutcomeError, 0)
	setCacheHeader(w.Header(), OutcomeError)
	http.Error(w, "bad gateway", http.StatusBadGateway)
}

func (c *Controller) fetch(ctx context.Context, method, target string, hdr http.Header, body io.Reader) (CacheEntry, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return CacheEntry{}, err
	}
	if hdr != nil {
		copyHeaders(req.Header, hdr)
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.client.Do(req)
	if err != nil {
		return CacheEntry{}, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return CacheEntry{}, err
	}

	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	ent := CacheEntry{
		Status:   resp.StatusCode,
		Header:   cloneHeader(resp.Header),
		Body:     b,
		StoredAt: time.Now().Unix(),
		Type:     c.responseType(final, resp.Header),
		URL:      final.String(),
	}
	ent.Header.Del("Content-Length")
	return ent, nil
}

func (c *Controller) responseType(u *url.URL, h http.Header) ResponseType {
	if c.sameOrigin(u) {
		return TypeBasic
	}
	if h.Get("Access-Control-Allow-Origin") != "" {
		return TypeCORS
	}
	return TypeOpaque
}

func (c *Controller) write(w http.ResponseWriter, ent CacheEntry, o Outcome) {
	for k, vs := range ent.Header {
		if strings.EqualFold(k, "X-Cache") {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	setCacheHeader(w.Header(), o)
	w.WriteHeader(ent.Status)
	_, _ = w.Write(ent.Body)
	c.stats.Observe(o, len(ent.Body))
}

func setCacheHeader(h http.Header, o Outcome) {
	h.Set("X-Cache", string(o))
	ensureExposedHeader(h, "X-Cache")
}

func ensureExposedHeader(h http.Header, name string) {
	const expose = "Access-Control-Expose-Headers"
	cur := h.Values(expose)
	if len(cur) == 0 {
		h.Set(expose, name)
		return
	}
	merged := strings.Join(cur, ",")
	for _, part := range strings.Split(merged, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}
	h.Set(expose, strings.TrimSpace(merged)+", "+name)
}

var hopHeaders = map[string]struct{}{
	"Host": {}, "Connection": {}, "Keep-Alive": {}, "Proxy-Connection": {},
	"Te": {}, "Trailer": {}, "Transfer-Encoding": {}, "Upgrade": {},
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		if _, hop := hopHeaders[http.CanonicalHeaderKey(k)]; hop {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
