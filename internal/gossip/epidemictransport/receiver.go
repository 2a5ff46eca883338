package epidemictransport

// Envelope is the message exchanged during one gossip round: the full
// local state up front, and in reply, only the states that the caller
// is missing or whose local version is at least the caller's.
type Envelope struct {
	States []PeerState
}

// newReceiver creates the RPC receiver backing incoming gossip rounds.
func newReceiver(store *stateStore, onLearn func(PeerState)) *receiver {
	return &receiver{store: store, onLearn: onLearn}
}

// receiver handles inbound Gossip RPCs from peers.
type receiver struct {
	store   *stateStore
	onLearn func(PeerState)
}

// Gossip merges the caller's view into the local store and replies with
// anything the caller is missing, plus every local state whose version
// is greater than or equal to the caller's copy.
func (r *receiver) Gossip(req *Envelope, reply *Envelope) error {
	locals := r.store.Peers()

	reply.States = []PeerState{}
	for _, state := range req.States {
		if newer := r.store.Update(state); newer != nil {
			reply.States = append(reply.States, *newer)
		} else {
			r.onLearn(state)
		}
		delete(locals, state.NodeAddr)
	}

	for _, v := range locals {
		reply.States = append(reply.States, v)
	}

	return nil
}
