// Package epidemictransport is a gossip.Transport adapted from the
// teacher's toy epidemic gossip protocol (golang-mastery's gossip/pkg),
// repurposed to exchange free-CPU advertisements instead of raw cluster
// membership heartbeats. It requires no external agent and is used by
// cmd/healer-demo.
package epidemictransport

import "sync"

// PeerState is one node's last-known free-CPU advertisement, as carried
// by this transport's gossip rounds. Version increases every time a
// node re-advertises, so peers can tell a newer advertisement from a
// stale one during epidemic exchange.
type PeerState struct {
	NodeAddr string
	FreeCPU  int64
	Version  uint64
}

// newStateStore creates an empty peer state store.
func newStateStore() *stateStore {
	return &stateStore{store: map[string]PeerState{}}
}

// stateStore is the in-memory store of PeerState exchanged during gossip
// rounds. It is distinct from peerview.PeerView: this store tracks
// transport-level freshness (Version) so the epidemic protocol can
// decide what to reply with; peerview.PeerView is the core's
// capacity-comparison view fed by the events this store emits.
type stateStore struct {
	mu    sync.RWMutex
	store map[string]PeerState
}

// Update merges a remote PeerState into the store. If the store already
// holds a state with a version greater than or equal to the incoming
// one, the incoming update is stale and the store's own (more recent)
// state is returned so it can be shared back with the gossip round
// initiator. Returns nil when the incoming state was newer (or new) and
// has been applied.
func (s *stateStore) Update(state PeerState) *PeerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, exists := s.store[state.NodeAddr]
	if !exists {
		s.store[state.NodeAddr] = state
		return nil
	}

	if elem.Version >= state.Version {
		out := elem
		return &out
	}

	s.store[state.NodeAddr] = state
	return nil
}

// Set records this node's own free-CPU measurement, bumping its version
// so the change propagates on the next gossip round.
func (s *stateStore) Set(self string, freeCPU int64) PeerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem := s.store[self]
	next := PeerState{NodeAddr: self, FreeCPU: freeCPU, Version: elem.Version + 1}
	s.store[self] = next
	return next
}

// Peers returns a copy of every known PeerState.
func (s *stateStore) Peers() map[string]PeerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]PeerState, len(s.store))
	for k, v := range s.store {
		out[k] = v
	}
	return out
}
