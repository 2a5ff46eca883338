package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dlamagna/kubernetes-edge-healer/internal/controlplane"
	"github.com/dlamagna/kubernetes-edge-healer/internal/coreevents"
)

// fakeControlPlane simulates a Kubernetes control plane that can be
// toggled offline and records the first bind it receives per pod,
// rejecting every subsequent one as a conflict — the same semantics a
// real API server's binding sub-resource has under the pod's resource
// version.
type fakeControlPlane struct {
	mu      sync.Mutex
	offline bool
	bound   map[string]string // "namespace/name" -> node that won

	podEvents chan coreevents.PodGone
	rsEvents  chan coreevents.ReplicaSetObserved
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{
		bound:     make(map[string]string),
		podEvents: make(chan coreevents.PodGone, 16),
		rsEvents:  make(chan coreevents.ReplicaSetObserved, 16),
	}
}

func (f *fakeControlPlane) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *fakeControlPlane) Probe(ctx context.Context, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return fmt.Errorf("demo control plane: simulated outage")
	}
	return nil
}

func (f *fakeControlPlane) Bind(ctx context.Context, namespace, pod, node string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := namespace + "/" + pod
	if existing, ok := f.bound[key]; ok {
		return fmt.Errorf("%w: %s already bound to %s", controlplane.ErrBindConflict, key, existing)
	}
	f.bound[key] = node
	return nil
}

func (f *fakeControlPlane) WatchPods(ctx context.Context) (<-chan coreevents.PodGone, error) {
	return f.podEvents, nil
}

func (f *fakeControlPlane) WatchReplicaSets(ctx context.Context) (<-chan coreevents.ReplicaSetObserved, error) {
	return f.rsEvents, nil
}

// KillPod injects a pod-disappearance event as if the kubelet had
// reported it gone from this node.
func (f *fakeControlPlane) KillPod(namespace, name, uid string) {
	f.podEvents <- coreevents.PodGone{Namespace: namespace, Name: name, UID: uid}
}

func (f *fakeControlPlane) Winner(namespace, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.bound[namespace+"/"+name]
	return node, ok
}
