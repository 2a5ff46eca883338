// Package gossip ingests remote free-CPU advertisements into the Peer
// View and periodically advertises this node's own free-CPU value,
// coalescing bursts of local updates into a single broadcast.
package gossip

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dlamagna/kubernetes-edge-healer/internal/backoff"
	"github.com/dlamagna/kubernetes-edge-healer/internal/peerview"
)

const (
	// FreeCPUEvent is the stable event name free-CPU broadcasts use.
	FreeCPUEvent = "free_cpu"

	reconnectBase     = 500 * time.Millisecond
	reconnectFactor   = 2.0
	reconnectMax      = 30 * time.Second
	coalesceWindow    = 250 * time.Millisecond
	pendingBufferSize = 1
)

type freeCPUPayload struct {
	FreeCPU int64 `json:"free_cpu"`
}

// NewEngine builds a Gossip Engine over the given Transport.
func NewEngine(transport Transport, view *peerview.PeerView, peerUpdates prometheus.Counter, logger *zap.Logger) *Engine {
	return &Engine{
		transport:   transport,
		view:        view,
		peerUpdates: peerUpdates,
		logger:      logger,
		pending:     make(chan int64, pendingBufferSize),
	}
}

// Engine is the long-running gossip ingress/egress task: it ingests
// remote advertisements into the Peer View and coalesces outgoing
// local measurements into periodic broadcasts.
type Engine struct {
	transport   Transport
	view        *peerview.PeerView
	peerUpdates prometheus.Counter
	logger      *zap.Logger
	pending     chan int64
}

// Advertise records the node's current free-CPU measurement as its own
// Peer View entry and queues it for the next coalesced broadcast.
// Non-blocking: if a value is already pending it is replaced, since only
// the latest measurement matters.
func (e *Engine) Advertise(milliCPU int64) {
	e.view.Update(e.view.Self(), milliCPU)
	select {
	case e.pending <- milliCPU:
	default:
		// Drain the stale pending value and replace it with the latest
		// one; per-peer state is last-writer-wins anyway.
		select {
		case <-e.pending:
		default:
		}
		select {
		case e.pending <- milliCPU:
		default:
		}
	}
}

// Run drives both the ingress and egress loops until ctx is cancelled.
// It never returns an error: transport failures are logged and retried
// with a bounded back-off.
func (e *Engine) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.ingressLoop(ctx)
	}()

	e.egressLoop(ctx)
	<-done
	return nil
}

func (e *Engine) ingressLoop(ctx context.Context) {
	retry := backoff.New(reconnectBase, reconnectFactor, reconnectMax)

	for {
		if ctx.Err() != nil {
			return
		}

		events, err := e.transport.Events(ctx)
		if err != nil {
			d := retry.Backoff()
			e.logger.Warn("gossip transport connect failed, retrying", zap.Error(err), zap.Duration("backoff", d))
			if !e.sleepOrDone(ctx, d) {
				return
			}
			continue
		}
		retry.Reset()

	recv:
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					break recv
				}
				if event.Name != FreeCPUEvent {
					continue // unknown event names are ignored silently
				}
				var payload freeCPUPayload
				if err := json.Unmarshal(event.Payload, &payload); err != nil {
					e.logger.Warn("dropping malformed free_cpu payload", zap.String("src", event.Src), zap.Error(err))
					continue
				}
				e.view.Update(event.Src, payload.FreeCPU)
				e.peerUpdates.Inc()
			}
		}

		// The events channel closed: the transport dropped its
		// connection. Back off before reconnecting.
		if ctx.Err() != nil {
			return
		}
		d := retry.Backoff()
		e.logger.Warn("gossip transport connection closed, reconnecting", zap.Duration("backoff", d))
		if !e.sleepOrDone(ctx, d) {
			return
		}
	}
}

func (e *Engine) egressLoop(ctx context.Context) {
	var latest int64
	var have bool

	timer := time.NewTimer(coalesceWindow)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case v := <-e.pending:
			latest = v
			have = true
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(coalesceWindow)

		case <-timer.C:
			if have {
				payload, err := json.Marshal(freeCPUPayload{FreeCPU: latest})
				if err != nil {
					e.logger.Error("failed to encode free_cpu payload", zap.Error(err))
				} else if err := e.transport.Broadcast(ctx, FreeCPUEvent, payload); err != nil {
					e.logger.Warn("gossip broadcast failed", zap.Error(err))
				}
				have = false
			}
			timer.Reset(coalesceWindow)
		}
	}
}

// sleepOrDone waits for d, returning false early (without sleeping the
// full duration) if ctx is cancelled first.
func (e *Engine) sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
