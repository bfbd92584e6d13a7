package gallery

import (
	"context"
	"errors"
	"log"

	"ntes/internal/blobstore"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Tombstones int
	Orphans    int
	Failed     int
}

// Reconcile finishes interrupted deletions and removes blobs no record
// references once they are older than OrphanGrace.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	pending, err := s.docs.ListDeletingImages(ctx)
	if err != nil {
		return rep, err
	}
	for _, img := range pending {
		if err := s.finishDelete(ctx, img); err != nil {
			rep.Failed++
			log.Printf("gallery: reconcile tombstone id=%s path=%s: %v", img.ID, img.Path, err)
			continue
		}
		rep.Tombstones++
	}

	known, err := s.docs.ImagePaths(ctx)
	if err != nil {
		return rep, err
	}
	cutoff := s.now().Add(-s.OrphanGrace)
	var orphans []string
	err = s.blobs.Walk(ctx, PathPrefix, func(o blobstore.Object) error {
		if _, ok := known[o.Path]; ok || o.ModTime.After(cutoff) {
			return nil
		}
		orphans = append(orphans, o.Path)
		return nil
	})
	if err != nil {
		return rep, err
	}
	var errs []error
	for _, p := range orphans {
		if err := s.blobs.Delete(ctx, p); err != nil {
			rep.Failed++
			errs = append(errs, err)
			continue
		}
		rep.Orphans++
	}

	cats, err := s.docs.ListCategories(ctx)
	if err != nil {
		return rep, err
	}
	for _, c := range cats {
		if c.Auto && c.Count == 0 {
			if err := s.pruneAuto(ctx, c.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if rep.Tombstones > 0 || rep.Orphans > 0 {
		s.refresh(ctx)
	}
	return rep, errors.Join(errs...)
}
