package epidemictransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/dlamagna/kubernetes-edge-healer/internal/gossip"
)

const (
	numGossipRoundPeers  = 2
	gossipRoundInterval  = 800 * time.Millisecond
	gossipReceiverRPCName = "EpidemicReceiver"
	eventsBufferSize      = 64
)

// New creates a Transport bound to bindAddr that gossips with the given
// seed addresses. Call Serve to start accepting connections and running
// gossip rounds.
func New(self string, bindAddr string, seedAddrs []string) *Transport {
	store := newStateStore()

	t := &Transport{
		self:      self,
		bindAddr:  bindAddr,
		seedAddrs: seedAddrs,
		store:     store,
		events:    make(chan gossip.Event, eventsBufferSize),
		closing:   make(chan chan error),
	}

	rcvr := newReceiver(store, t.emit)
	engine := rpc.NewServer()
	engine.RegisterName(gossipReceiverRPCName, rcvr)
	t.engine = engine

	return t
}

// Transport is a gossip.Transport implementation requiring no external
// agent: nodes exchange free-CPU state over plain net/rpc, epidemic
// style.
type Transport struct {
	self      string
	bindAddr  string
	seedAddrs []string

	store  *stateStore
	engine *rpc.Server
	events chan gossip.Event

	closing    chan chan error
	mu         sync.Mutex
	started    bool
}

// Serve starts the RPC listener and the background gossip-round
// goroutine. Safe to call once; subsequent calls are no-ops.
func (t *Transport) Serve(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	l, err := net.Listen("tcp", t.bindAddr)
	if err != nil {
		return fmt.Errorf("epidemictransport: listen on %s: %w", t.bindAddr, err)
	}

	go t.serveLoop(l)
	go t.gossipRound(ctx)

	return nil
}

// Shutdown stops the RPC listener. The gossip-round goroutine keeps
// running until the context passed to Serve is cancelled.
func (t *Transport) Shutdown() error {
	errch := make(chan error)
	t.closing <- errch
	return <-errch
}

// Events satisfies gossip.Transport: it starts the background protocol
// on first call and returns the channel onto which newly-learned peer
// advertisements are emitted as gossip.Event values. Every call returns
// the same channel, and it is never closed.
func (t *Transport) Events(ctx context.Context) (<-chan gossip.Event, error) {
	if err := t.Serve(ctx); err != nil {
		return nil, err
	}
	return t.events, nil
}

// Broadcast records this node's own free-CPU measurement so it
// propagates to peers on the next gossip round.
func (t *Transport) Broadcast(ctx context.Context, name string, payload []byte) error {
	if name != gossip.FreeCPUEvent {
		return nil
	}
	var decoded struct {
		FreeCPU int64 `json:"free_cpu"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("epidemictransport: decode free_cpu payload: %w", err)
	}
	t.store.Set(t.self, decoded.FreeCPU)
	return nil
}

// emit pushes a newly-learned PeerState out as a gossip.Event, dropping
// the event if the buffer is full rather than blocking the caller.
func (t *Transport) emit(state PeerState) {
	payload, err := json.Marshal(struct {
		FreeCPU int64 `json:"free_cpu"`
	}{FreeCPU: state.FreeCPU})
	if err != nil {
		return
	}
	event := gossip.Event{Name: gossip.FreeCPUEvent, Src: state.NodeAddr, Payload: payload}
	select {
	case t.events <- event:
	default:
		select {
		case <-t.events:
		default:
		}
		select {
		case t.events <- event:
		default:
		}
	}
}

func (t *Transport) serveLoop(l net.Listener) {
	defer l.Close()

	serving := make(chan net.Conn, 1)
	accepting := make(chan struct{}, 1)
	accepting <- struct{}{}
	for {
		select {
		case <-accepting:
			go func() {
				conn, err := l.Accept()
				if err != nil {
					return
				}
				serving <- conn
			}()

		case conn, ok := <-serving:
			if !ok {
				return
			}
			go t.engine.ServeConn(conn)
			accepting <- struct{}{}

		case errch := <-t.closing:
			errch <- nil
			return
		}
	}
}

func (t *Transport) gossipRound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(gossipRoundInterval):
			t.runOneRound()
		}
	}
}

func (t *Transport) runOneRound() {
	known := t.store.Peers()
	candidates := make([]string, 0, len(known)+len(t.seedAddrs))
	seen := map[string]struct{}{t.self: {}}
	for addr := range known {
		if _, ok := seen[addr]; !ok {
			candidates = append(candidates, addr)
			seen[addr] = struct{}{}
		}
	}
	for _, addr := range t.seedAddrs {
		if _, ok := seen[addr]; !ok {
			candidates = append(candidates, addr)
			seen[addr] = struct{}{}
		}
	}

	if len(candidates) == 0 {
		return
	}

	for _, idx := range randIndexes(len(candidates), numGossipRoundPeers) {
		t.gossipWith(candidates[idx])
	}
}

func (t *Transport) gossipWith(peer string) {
	client, err := rpc.Dial("tcp", peer)
	if err != nil {
		return
	}
	defer client.Close()

	states := make([]PeerState, 0)
	for _, v := range t.store.Peers() {
		states = append(states, v)
	}

	req := Envelope{States: states}
	var reply Envelope

	serviceMethod := fmt.Sprintf("%s.Gossip", gossipReceiverRPCName)
	if err := client.Call(serviceMethod, &req, &reply); err != nil {
		return
	}

	for _, state := range reply.States {
		if newer := t.store.Update(state); newer == nil {
			t.emit(state)
		}
	}
}
