package offline

import (
	"math"
	"sync/atomic"
)

// Outcome is the X-Cache value describing how a request was answered.
type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomeMiss    Outcome = "miss"
	OutcomeRefresh Outcome = "refresh" // live page fetched and re-stored
	OutcomeBypass  Outcome = "bypass"
	OutcomeOffline Outcome = "offline"
	OutcomeQueued  Outcome = "queued"
	OutcomeError   Outcome = "bad-gateway"
)

type statsCollector struct {
	hits     atomic.Uint64
	misses   atomic.Uint64
	bypassed atomic.Uint64
	offline  atomic.Uint64
	queued   atomic.Uint64
	failed   atomic.Uint64

	totalResponses atomic.Uint64
	totalRespBytes atomic.Uint64
	minRespBytes   atomic.Uint64
	maxRespBytes   atomic.Uint64
}

func newStatsCollector() *statsCollector {
	s := &statsCollector{}
	s.minRespBytes.Store(math.MaxUint64)
	return s
}

func (s *statsCollector) Observe(o Outcome, respBytes int) {
	switch o {
	case OutcomeHit:
		s.hits.Add(1)
	case OutcomeMiss, OutcomeRefresh:
		s.misses.Add(1)
	case OutcomeBypass:
		s.bypassed.Add(1)
	case OutcomeOffline:
		s.offline.Add(1)
	case OutcomeQueued:
		s.queued.Add(1)
	case OutcomeError:
		s.failed.Add(1)
	}
	if o != OutcomeHit && o != OutcomeMiss && o != OutcomeRefresh {
		return
	}
	if respBytes < 0 {
		respBytes = 0
	}
	n := uint64(respBytes)

	s.totalResponses.Add(1)
	s.totalRespBytes.Add(n)

	for {
		cur := s.minRespBytes.Load()
		if n >= cur {
			break
		}
		if s.minRespBytes.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := s.maxRespBytes.Load()
		if n <= cur {
			break
		}
		if s.maxRespBytes.CompareAndSwap(cur, n) {
			break
		}
	}
}

// Stats is a snapshot of request outcomes and cached response sizes.
type Stats struct {
	Hits, Misses, Bypassed, Offline, Queued, Failed uint64

	MinRespBytes uint64
	MaxRespBytes uint64
	AvgRespBytes uint64
}

func (s *statsCollector) Snapshot() Stats {
	out := Stats{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Bypassed: s.bypassed.Load(),
		Offline:  s.offline.Load(),
		Queued:   s.queued.Load(),
		Failed:   s.failed.Load(),
	}
	count := s.totalResponses.Load()
	if count == 0 {
		return out
	}
	minv := s.minRespBytes.Load()
	if minv == math.MaxUint64 {
		minv = 0
	}
	out.MinRespBytes = minv
	out.MaxRespBytes = s.maxRespBytes.Load()
	out.AvgRespBytes = s.totalRespBytes.Load() / count
	return out
}
