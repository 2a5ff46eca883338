// Package bidder implements the core offline-detection + bidding +
// optimistic-bind state machine. This is the component the rest of the
// agent exists to support.
package bidder

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dlamagna/kubernetes-edge-healer/internal/controlplane"
	"github.com/dlamagna/kubernetes-edge-healer/internal/coreevents"
	"github.com/dlamagna/kubernetes-edge-healer/internal/offline"
	"github.com/dlamagna/kubernetes-edge-healer/internal/peerview"
)

// Outcome classifies how one bid attempt ended. Ephemeral: never
// persisted.
type Outcome int

const (
	// OutcomeSkippedOnline: the control plane was reachable, so the
	// real scheduler owns this event.
	OutcomeSkippedOnline Outcome = iota
	// OutcomeLostBid: a peer advertised strictly more free CPU (or won
	// the tie-break).
	OutcomeLostBid
	// OutcomeWon: this node bound the pod successfully.
	OutcomeWon
	// OutcomeConflict: another node's bind beat this one (HTTP 409).
	OutcomeConflict
	// OutcomeError: the bind attempt failed for a reason other than a
	// conflict.
	OutcomeError
)

// Decision is the ephemeral per-event bidding result.
type Decision struct {
	Winner      bool
	WinningPeer string
	Outcome     Outcome
}

// New builds a Bidder.
func New(
	cp controlplane.ControlPlane,
	detector *offline.Detector,
	view *peerview.PeerView,
	restoreLatency prometheus.Histogram,
	bindConflicts prometheus.Counter,
	logger *zap.Logger,
) *Bidder {
	return &Bidder{
		cp:             cp,
		detector:       detector,
		view:           view,
		restoreLatency: restoreLatency,
		bindConflicts:  bindConflicts,
		logger:         logger,
		now:            time.Now,
	}
}

// Bidder implements the following state machine:
//
//	EVENT_RECEIVED
//	  ├─ online  → DONE (skip)
//	  └─ offline → CAPACITY_CHECKED
//	                 ├─ lost bid    → DONE (skip)
//	                 └─ won locally → BIND_ATTEMPTED
//	                                     ├─ 2xx → SUCCEEDED (observe latency)
//	                                     ├─ 409 → CONFLICTED (bump counter)
//	                                     └─ err → FAILED (log)
type Bidder struct {
	cp             controlplane.ControlPlane
	detector       *offline.Detector
	view           *peerview.PeerView
	restoreLatency prometheus.Histogram
	bindConflicts  prometheus.Counter
	logger         *zap.Logger

	// now is overridable in tests to make latency assertions exact.
	now func() time.Time
}

// HandlePodGone runs the full bid-and-bind state machine for a single
// pod-disappearance event. Every event is independent: concurrent
// invocations take their own Peer View snapshot and their own bind
// attempt; 409s bound the damage of simultaneous winners.
func (b *Bidder) HandlePodGone(ctx context.Context, event coreevents.PodGone) Decision {
	start := b.now()
	bidID := uuid.NewString()

	if !b.detector.IsOffline(ctx, offline.DefaultTimeout) {
		b.logger.Debug("control plane reachable, skipping bid",
			zap.String("bid_id", bidID),
			zap.String("namespace", event.Namespace), zap.String("name", event.Name))
		return Decision{Outcome: OutcomeSkippedOnline}
	}

	self := b.view.Self()
	snapshot := b.view.Snapshot()
	winner := decideBid(self, snapshot)

	if winner != self {
		b.logger.Debug("lost bid",
			zap.String("bid_id", bidID),
			zap.String("namespace", event.Namespace), zap.String("name", event.Name),
			zap.String("winner", winner))
		return Decision{Winner: false, WinningPeer: winner, Outcome: OutcomeLostBid}
	}

	err := b.cp.Bind(ctx, event.Namespace, event.Name, self)
	switch {
	case err == nil:
		latency := b.now().Sub(start).Seconds()
		b.restoreLatency.Observe(latency)
		b.logger.Info("won bid and bound pod",
			zap.String("bid_id", bidID),
			zap.String("namespace", event.Namespace), zap.String("name", event.Name),
			zap.Float64("latency_seconds", latency))
		return Decision{Winner: true, WinningPeer: self, Outcome: OutcomeWon}

	case errors.Is(err, controlplane.ErrBindConflict):
		b.bindConflicts.Inc()
		b.logger.Debug("lost bind race to another winner",
			zap.String("bid_id", bidID),
			zap.String("namespace", event.Namespace), zap.String("name", event.Name))
		return Decision{Winner: true, WinningPeer: self, Outcome: OutcomeConflict}

	default:
		b.logger.Error("bind attempt failed",
			zap.String("bid_id", bidID),
			zap.String("namespace", event.Namespace), zap.String("name", event.Name), zap.Error(err))
		return Decision{Winner: true, WinningPeer: self, Outcome: OutcomeError}
	}
}

// decideBid compares advertised free CPU across the current peer
// snapshot: any peer with strictly more free CPU than self wins
// outright; among peers tied at the maximum value, the
// lexicographically smallest peer identity wins. self always
// participates in the comparison (its own snapshot entry, defaulting to
// 0 if never set).
func decideBid(self string, snapshot map[string]int64) string {
	type candidate struct {
		peer string
		cpu  int64
	}

	candidates := make([]candidate, 0, len(snapshot)+1)
	if _, ok := snapshot[self]; !ok {
		candidates = append(candidates, candidate{peer: self, cpu: 0})
	}
	for peer, cpu := range snapshot {
		candidates = append(candidates, candidate{peer: peer, cpu: cpu})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].cpu != candidates[j].cpu {
			return candidates[i].cpu > candidates[j].cpu
		}
		return candidates[i].peer < candidates[j].peer
	})

	return candidates[0].peer
}
