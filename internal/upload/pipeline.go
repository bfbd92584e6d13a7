package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"ntes/internal/apperr"
	"ntes/internal/blobstore"
	"ntes/internal/docstore"
	"ntes/internal/gallery"
)

// Gallery is the part of the gallery the pipeline writes to.
type Gallery interface {
	EnsureCategory(ctx context.Context, label string) (gallery.CategoryView, error)
	AddImage(ctx context.Context, img docstore.Image) (docstore.Image, error)
	Reload(ctx context.Context) (gallery.Listing, error)
}

// Blobs is the object store the pipeline uploads to.
type Blobs interface {
	Put(ctx context.Context, path string, r io.Reader, onProgress blobstore.ProgressFunc) (blobstore.Object, error)
	URL(path string) string
}

// Options configures a Pipeline.
type Options struct {
	MaxFileSize int64
	Policy      Policy
	SettleDelay time.Duration
}

// Pipeline uploads batches of files into the gallery.
type Pipeline struct {
	gallery Gallery
	blobs   Blobs
	tracker *Tracker
	opts    Options
	now     func() time.Time
}

func NewPipeline(g Gallery, blobs Blobs, tracker *Tracker, opts Options) *Pipeline {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Pipeline{gallery: g, blobs: blobs, tracker: tracker, opts: opts, now: time.Now}
}

// Tracker exposes batch status for polling.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// MaxFileSize is the effective per-file ceiling.
func (p *Pipeline) MaxFileSize() int64 { return p.opts.MaxFileSize }

// Start validates files and uploads the accepted ones in the background.
// The returned snapshot lists the pending tasks and any rejections. The
// upload outlives ctx cancellation.
func (p *Pipeline) Start(ctx context.Context, category string, files []File) (Batch, error) {
	batch, accepted, err := p.begin(ctx, category, files)
	if err != nil || len(accepted) == 0 {
		return batch, err
	}
	bg := context.WithoutCancel(ctx)
	go p.run(bg, batch, accepted)
	return batch, nil
}

// Run is Start that waits for the batch to settle and clear. It returns
// the final snapshot taken just before clearing.
func (p *Pipeline) Run(ctx context.Context, category string, files []File) (Batch, error) {
	batch, accepted, err := p.begin(ctx, category, files)
	if err != nil || len(accepted) == 0 {
		return batch, err
	}
	return p.run(ctx, batch, accepted), nil
}

func (p *Pipeline) begin(ctx context.Context, category string, files []File) (Batch, []File, error) {
	accepted, rejected := Validate(files, p.opts.MaxFileSize)
	for _, r := range rejected {
		log.Printf("upload: rejected %s size=%d limit=%d", r.Name, r.Size, p.opts.MaxFileSize)
	}
	if len(accepted) == 0 {
		return Batch{Category: category, Rejected: rejected, Settled: true, Cleared: true}, nil, nil
	}
	cat, err := p.gallery.EnsureCategory(ctx, category)
	if err != nil {
		return Batch{Rejected: rejected}, nil, err
	}
	return p.tracker.Create(cat.ID, accepted, rejected), accepted, nil
}

func (p *Pipeline) run(ctx context.Context, batch Batch, files []File) Batch {
	started := time.Now()
	workers := pool.New()
	for i, f := range files {
		workers.Go(func() {
			defer f.release()
			if err := p.uploadOne(ctx, batch.ID, batch.Category, i, f); err != nil {
				log.Printf("upload: batch=%s file=%s: %v", batch.ID, f.Name, err)
				p.tracker.Update(batch.ID, i, func(t *Task) {
					t.Status = StatusError
					t.Error = taskMessage(err)
				})
			}
		})
	}
	workers.Wait()
	p.tracker.Settle(batch.ID)
	final, _ := p.tracker.Get(batch.ID)
	log.Printf("upload: batch=%s settled files=%d took=%s", batch.ID, len(files), time.Since(started).Truncate(time.Millisecond))

	select {
	case <-time.After(p.opts.SettleDelay):
	case <-ctx.Done():
	}
	if _, err := p.gallery.Reload(context.WithoutCancel(ctx)); err != nil {
		log.Printf("upload: batch=%s reload gallery: %v", batch.ID, err)
	}
	p.tracker.Clear(batch.ID)
	return final
}

func (p *Pipeline) uploadOne(ctx context.Context, batchID, category string, idx int, f File) error {
	p.tracker.Update(batchID, idx, func(t *Task) { t.Status = StatusUploading })

	stored := Compress(f, p.opts.Policy)
	objPath := StoragePath(category, f.Name, p.now())

	rc, err := stored.Open()
	if err != nil {
		return &stepError{step: "Could not read the file", err: err}
	}
	defer rc.Close()

	total := stored.Size
	obj, err := p.blobs.Put(ctx, objPath, rc, func(written int64) {
		if total <= 0 {
			return
		}
		pct := int(written * 100 / total)
		if pct > 99 {
			pct = 99
		}
		p.tracker.Update(batchID, idx, func(t *Task) {
			if pct > t.Progress {
				t.Progress = pct
			}
		})
	})
	if err != nil {
		return &stepError{step: "Upload failed", err: err}
	}

	original := f.Size
	if original <= 0 {
		original = obj.Size
	}
	if _, err := p.gallery.AddImage(ctx, docstore.Image{
		Name:         f.Name,
		URL:          p.blobs.URL(obj.Path),
		Category:     category,
		Path:         obj.Path,
		Size:         obj.Size,
		OriginalSize: original,
		CreatedAt:    p.now(),
	}); err != nil {
		return &stepError{step: "Could not save the image record", err: err}
	}

	p.tracker.Update(batchID, idx, func(t *Task) {
		t.Status = StatusCompleted
		t.Progress = 100
		t.Indeterminate = false
	})
	return nil
}

// stepError names the upload step that failed.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return fmt.Sprintf("%s: %v", strings.ToLower(e.step), e.err) }

func (e *stepError) Unwrap() error { return e.err }

func taskMessage(err error) string {
	var se *stepError
	if errors.As(err, &se) {
		return se.step + ": " + apperr.CauseText(se.err)
	}
	return apperr.UserMessage(err)
}
