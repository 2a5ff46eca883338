// Package serftransport is the production gossip.Transport, backed by a
// local Serf agent's RPC endpoint. The agent itself (membership,
// failure detection, UDP fan-out) is expected to already be running as
// a side-car; this package only speaks the RPC protocol a local agent
// exposes.
package serftransport

import (
	"context"
	"encoding/json"
	"fmt"

	serfclient "github.com/hashicorp/serf/client"

	"github.com/dlamagna/kubernetes-edge-healer/internal/gossip"
)

// queryEventName is the Serf query used to carry free-CPU advertisements.
// A Serf query (rather than a plain user event) is used because queries
// report the originating node, which the core relies on for the "src"
// field of the gossip wire format.
const queryEventName = gossip.FreeCPUEvent

// New creates a Transport that will dial the local Serf agent's RPC
// endpoint at addr (host:port) on first use.
func New(addr string) *Transport {
	return &Transport{addr: addr}
}

// Transport implements gossip.Transport against a local Serf agent.
type Transport struct {
	addr string
}

// Events connects to the local Serf agent and streams free_cpu queries
// as they arrive, translating them into gossip.Event values. The
// returned channel is closed if ctx is cancelled or the connection to
// the agent is lost; the Gossip Engine is responsible for reconnecting
// with a back-off.
func (t *Transport) Events(ctx context.Context) (<-chan gossip.Event, error) {
	rpcClient, err := serfclient.NewRPCClient(t.addr)
	if err != nil {
		return nil, fmt.Errorf("serftransport: dial serf agent at %s: %w", t.addr, err)
	}

	raw := make(chan map[string]interface{}, 64)
	if _, err := rpcClient.Stream("query", raw); err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("serftransport: stream query events: %w", err)
	}

	out := make(chan gossip.Event, 64)
	go func() {
		defer close(out)
		defer rpcClient.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-raw:
				if !ok {
					return
				}
				event, ok := decodeQueryEvent(raw)
				if !ok {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Broadcast issues a fire-and-forget Serf query carrying the free-CPU
// payload. Queries (rather than user events) are used so the source
// node is visible to peers; responses, if any, are discarded.
func (t *Transport) Broadcast(ctx context.Context, name string, payload []byte) error {
	rpcClient, err := serfclient.NewRPCClient(t.addr)
	if err != nil {
		return fmt.Errorf("serftransport: dial serf agent at %s: %w", t.addr, err)
	}
	defer rpcClient.Close()

	resp, err := rpcClient.Query(name, payload, &serfclient.QueryParam{RequestAck: false})
	if err != nil {
		return fmt.Errorf("serftransport: query %q: %w", name, err)
	}
	// We don't wait for acks/responses: broadcasting free-CPU is
	// best-effort.
	resp.Close()
	return nil
}

// decodeQueryEvent translates the RPC client's generic event map into a
// gossip.Event, returning ok=false for anything that isn't a
// well-formed free_cpu query.
func decodeQueryEvent(raw map[string]interface{}) (gossip.Event, bool) {
	name, _ := raw["Name"].(string)
	if name != queryEventName {
		return gossip.Event{}, false
	}

	src, _ := raw["SourceNode"].(string)
	if src == "" {
		src, _ = raw["From"].(string)
	}

	var payload []byte
	switch p := raw["Payload"].(type) {
	case []byte:
		payload = p
	case string:
		payload = []byte(p)
	default:
		return gossip.Event{}, false
	}

	if !json.Valid(payload) {
		return gossip.Event{}, false
	}

	return gossip.Event{Name: name, Src: src, Payload: payload}, true
}
