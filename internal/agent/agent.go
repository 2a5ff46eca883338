// Package agent wires every component together and runs the node's
// event loops until the process is signalled to stop.
package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dlamagna/kubernetes-edge-healer/internal/bidder"
	"github.com/dlamagna/kubernetes-edge-healer/internal/cache"
	"github.com/dlamagna/kubernetes-edge-healer/internal/controlplane"
	"github.com/dlamagna/kubernetes-edge-healer/internal/gossip"
	"github.com/dlamagna/kubernetes-edge-healer/internal/httpserver"
	"github.com/dlamagna/kubernetes-edge-healer/internal/metrics"
	"github.com/dlamagna/kubernetes-edge-healer/internal/offline"
	"github.com/dlamagna/kubernetes-edge-healer/internal/peerview"
)

// Config collects everything Agent needs to start. Components are
// already constructed by the caller (cmd/edge-healer) so Agent itself
// stays free of any one transport's or control plane's concrete type.
type Config struct {
	NodeName    string
	MetricsAddr string
	CachePath   string

	ControlPlane controlplane.ControlPlane
	Transport    gossip.Transport
	Logger       *zap.Logger
}

// New builds an Agent and everything it owns: the peer view, the
// gossip engine, the offline detector, the bidder, the desired-state
// cache, and the metrics HTTP server.
func New(cfg Config) (*Agent, error) {
	registry := prometheus.NewRegistry()
	for _, c := range metrics.All() {
		registry.MustRegister(c)
	}

	view := peerview.New(cfg.NodeName)
	engine := gossip.NewEngine(cfg.Transport, view, metrics.PeerUpdates, cfg.Logger)
	detector := offline.New(cfg.ControlPlane, cfg.Logger)
	bid := bidder.New(cfg.ControlPlane, detector, view, metrics.RestoreLatency, metrics.BindConflicts, cfg.Logger)

	store := cache.New(cfg.CachePath)
	server := httpserver.New(cfg.MetricsAddr, registry, cfg.Logger)

	return &Agent{
		cfg:      cfg,
		view:     view,
		engine:   engine,
		detector: detector,
		bidder:   bid,
		cache:    store,
		server:   server,
		logger:   cfg.Logger,
	}, nil
}

// Agent owns every long-running component and runs them together under
// one cancellation signal.
type Agent struct {
	cfg      Config
	view     *peerview.PeerView
	engine   *gossip.Engine
	detector *offline.Detector
	bidder   *bidder.Bidder
	cache    *cache.Cache
	server   *httpserver.Server
	logger   *zap.Logger
}

// Run starts the gossip engine, the metrics server, and the two
// control-plane watch consumers, and blocks until ctx is cancelled (or
// the process receives SIGINT/SIGTERM) or any component returns an
// error.
func (a *Agent) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.cache.Init(ctx); err != nil {
		return fmt.Errorf("agent: init cache: %w", err)
	}
	defer a.cache.Close()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.engine.Run(groupCtx)
	})

	group.Go(func() error {
		return a.server.Serve(groupCtx, nil)
	})

	group.Go(func() error {
		return a.runPodWatch(groupCtx)
	})

	group.Go(func() error {
		return a.runReplicaSetWatch(groupCtx)
	})

	a.logger.Info("agent started", zap.String("node", a.cfg.NodeName))
	return group.Wait()
}

func (a *Agent) runPodWatch(ctx context.Context) error {
	events, err := a.cfg.ControlPlane.WatchPods(ctx)
	if err != nil {
		return fmt.Errorf("agent: watch pods: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			// Each event is handled independently and concurrently: a
			// burst of simultaneous pod losses must not serialize
			// behind one another's bind latency.
			go a.bidder.HandlePodGone(ctx, event)
		}
	}
}

func (a *Agent) runReplicaSetWatch(ctx context.Context) error {
	events, err := a.cfg.ControlPlane.WatchReplicaSets(ctx)
	if err != nil {
		return fmt.Errorf("agent: watch replicasets: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := a.cache.Save(ctx, event.UID, event.Spec); err != nil {
				a.logger.Error("failed to persist replicaset", zap.String("uid", event.UID), zap.Error(err))
			}
		}
	}
}

// View exposes the peer view so callers (e.g. cmd/healer-demo) can
// seed or inspect local capacity without reaching into agent internals.
func (a *Agent) View() *peerview.PeerView {
	return a.view
}

// Advertise forwards a free-CPU update to the gossip engine.
func (a *Agent) Advertise(milliCPU int64) {
	a.engine.Advertise(milliCPU)
}
