package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dlamagna/kubernetes-edge-healer/internal/coreevents"
)

func TestIsOfflineTrueOnProbeError(t *testing.T) {
	d := New(&probeOnlyControlPlane{err: errors.New("connection refused")}, zap.NewNop())
	if !d.IsOffline(context.Background(), time.Second) {
		t.Fatal("expected IsOffline to be true when the probe errors")
	}
}

func TestIsOfflineFalseOnProbeSuccess(t *testing.T) {
	d := New(&probeOnlyControlPlane{}, zap.NewNop())
	if d.IsOffline(context.Background(), time.Second) {
		t.Fatal("expected IsOffline to be false when the probe succeeds")
	}
}

func TestIsOfflineDefaultsTimeout(t *testing.T) {
	cp := &probeOnlyControlPlane{}
	d := New(cp, zap.NewNop())
	d.IsOffline(context.Background(), 0)
	if cp.lastTimeout != DefaultTimeout {
		t.Fatalf("expected default timeout %v, got %v", DefaultTimeout, cp.lastTimeout)
	}
}

// probeOnlyControlPlane implements just enough of controlplane.ControlPlane
// for these tests; Bind/WatchPods/WatchReplicaSets are never exercised by
// the Detector.
type probeOnlyControlPlane struct {
	err         error
	lastTimeout time.Duration
}

func (p *probeOnlyControlPlane) Probe(ctx context.Context, timeout time.Duration) error {
	p.lastTimeout = timeout
	return p.err
}

func (p *probeOnlyControlPlane) Bind(ctx context.Context, namespace, pod, node string) error {
	panic("not used by Detector tests")
}

func (p *probeOnlyControlPlane) WatchPods(ctx context.Context) (<-chan coreevents.PodGone, error) {
	panic("not used by Detector tests")
}

func (p *probeOnlyControlPlane) WatchReplicaSets(ctx context.Context) (<-chan coreevents.ReplicaSetObserved, error) {
	panic("not used by Detector tests")
}
