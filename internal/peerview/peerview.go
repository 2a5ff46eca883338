// Package peerview holds the in-memory, last-writer-wins mapping of peer
// identity to advertised free-CPU milli-cores that the Gossip Engine feeds
// and the Bidder reads.
package peerview

import (
	"sync"
	"time"
)

// New creates an empty PeerView.
func New(self string) *PeerView {
	return &PeerView{
		self:     self,
		cores:    map[string]int64{},
		lastSeen: map[string]time.Time{},
		now:      time.Now,
	}
}

// PeerView is a thread-safe last-writer-wins map of peer identity to
// free-CPU milli-cores. Entries persist until overwritten or, if a
// caller opts into Prune, until they go stale — there is no
// mandated TTL (see DESIGN.md Open Question on peer staleness).
type PeerView struct {
	mu       sync.RWMutex
	self     string
	cores    map[string]int64
	lastSeen map[string]time.Time
	now      func() time.Time
}

// Update upserts the free-CPU value advertised by peer and records the
// time it was seen, for Prune.
func (v *PeerView) Update(peer string, milliCPU int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cores[peer] = milliCPU
	v.lastSeen[peer] = v.now()
}

// Prune drops every peer (other than self) whose most recent Update is
// older than maxAge, returning the identities removed. A peer that
// stops gossiping — because it crashed or partitioned away — would
// otherwise sit in the view forever advertising stale capacity and
// could keep winning bids it can no longer honor; callers that want
// that protection run Prune periodically. Nothing calls this
// automatically: the baseline behavior is to never evict, matching
// DESIGN.md's Open Question decision.
func (v *PeerView) Prune(maxAge time.Duration) []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := v.now().Add(-maxAge)
	var removed []string
	for peer, seen := range v.lastSeen {
		if peer == v.self {
			continue
		}
		if seen.Before(cutoff) {
			delete(v.cores, peer)
			delete(v.lastSeen, peer)
			removed = append(removed, peer)
		}
	}
	return removed
}

// Snapshot returns an immutable copy of the current mapping. Readers
// observe a consistent view: no update that starts after Snapshot
// returns can be visible in the result, and no partial update is ever
// visible (the copy is made while holding the read lock).
func (v *PeerView) Snapshot() map[string]int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]int64, len(v.cores))
	for k, val := range v.cores {
		out[k] = val
	}
	return out
}

// SelfCPU is a convenience accessor for the local node's last advertised
// value. Returns 0 if this node has never set one.
func (v *PeerView) SelfCPU() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cores[v.self]
}

// Self returns the peer identity this PeerView was constructed with.
func (v *PeerView) Self() string {
	return v.self
}
