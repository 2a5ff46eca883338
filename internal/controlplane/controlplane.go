// Package controlplane wraps the three control-plane operations the
// core needs (a cheap liveness probe, the pod-binding sub-resource, and
// watches for pods/replica-sets) behind a narrow interface, so the rest
// of the agent never depends on the full k8s.io/client-go clientset
// surface.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"

	"github.com/dlamagna/kubernetes-edge-healer/internal/coreevents"
	"github.com/dlamagna/kubernetes-edge-healer/internal/watch"
)

// ErrBindConflict is returned by Bind when the API server rejects a
// binding with HTTP 409 — another node already won the race.
var ErrBindConflict = errors.New("controlplane: bind conflict")

// ControlPlane is the interface the Offline Detector and Bidder/Binder
// depend on.
type ControlPlane interface {
	// Probe returns nil if the control plane answered within timeout,
	// and a non-nil error otherwise (timeout, transport failure, or any
	// other API error).
	Probe(ctx context.Context, timeout time.Duration) error

	// Bind posts the optimistic binding of (namespace, pod) to node.
	// Returns ErrBindConflict on HTTP 409.
	Bind(ctx context.Context, namespace, pod, node string) error

	WatchPods(ctx context.Context) (<-chan coreevents.PodGone, error)
	WatchReplicaSets(ctx context.Context) (<-chan coreevents.ReplicaSetObserved, error)
}

// New wraps an existing client-go Clientset. nodeName filters the pod
// informer to pods scheduled on this node, since the Bidder only cares
// about pods it was hosting.
func New(clientset kubernetes.Interface, nodeName string) *Client {
	return &Client{clientset: clientset, nodeName: nodeName}
}

// Client is the k8s.io/client-go-backed ControlPlane implementation.
type Client struct {
	clientset kubernetes.Interface
	nodeName  string
}

// Probe asks the API server for its version as a cheap liveness check;
// a healthy control plane answers this without touching etcd or any
// admission webhook.
func (c *Client) Probe(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.clientset.Discovery().ServerVersion()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("controlplane: probe: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("controlplane: probe: %w", ctx.Err())
	}
}

// Bind posts an optimistic binding of pod to node via the pod's
// /binding sub-resource.
func (c *Client) Bind(ctx context.Context, namespace, pod, node string) error {
	binding := &corev1.Binding{
		ObjectMeta: metav1.ObjectMeta{Name: pod, Namespace: namespace},
		Target: corev1.ObjectReference{
			Kind: "Node",
			Name: node,
		},
	}

	err := c.clientset.CoreV1().Pods(namespace).Bind(ctx, binding, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if apierrors.IsConflict(err) {
		return fmt.Errorf("%w: %s/%s already bound", ErrBindConflict, namespace, pod)
	}
	return fmt.Errorf("controlplane: bind %s/%s to %s: %w", namespace, pod, node, err)
}

// WatchPods watches for pods disappearing from this node and emits a
// PodGone event on delete (and on resume-as-already-gone).
func (c *Client) WatchPods(ctx context.Context) (<-chan coreevents.PodGone, error) {
	factory := informers.NewSharedInformerFactoryWithOptions(c.clientset, 0,
		informers.WithTweakListOptions(func(opts *metav1.ListOptions) {
			opts.FieldSelector = "spec.nodeName=" + c.nodeName
		}),
	)
	informer := factory.Core().V1().Pods().Informer()

	out := make(chan coreevents.PodGone, 32)
	_, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		DeleteFunc: func(obj interface{}) {
			pod, ok := toPod(obj)
			if !ok {
				return
			}
			emitPodGone(ctx, out, watch.PodGoneFrom(pod))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("controlplane: register pod handler: %w", err)
	}

	factory.Start(ctx.Done())
	return out, nil
}

// WatchReplicaSets watches replica-set create/update observations and
// emits a ReplicaSetObserved event for each.
func (c *Client) WatchReplicaSets(ctx context.Context) (<-chan coreevents.ReplicaSetObserved, error) {
	factory := informers.NewSharedInformerFactoryWithOptions(c.clientset, 0)
	informer := factory.Apps().V1().ReplicaSets().Informer()

	out := make(chan coreevents.ReplicaSetObserved, 32)
	handler := func(obj interface{}) {
		rs, ok := toReplicaSet(obj)
		if !ok {
			return
		}
		event, err := watch.ReplicaSetObservedFrom(rs)
		if err != nil {
			return
		}
		emitReplicaSetObserved(ctx, out, event)
	}
	_, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    handler,
		UpdateFunc: func(_, newObj interface{}) { handler(newObj) },
	})
	if err != nil {
		return nil, fmt.Errorf("controlplane: register replicaset handler: %w", err)
	}

	factory.Start(ctx.Done())
	return out, nil
}

func toPod(obj interface{}) (*corev1.Pod, bool) {
	if pod, ok := obj.(*corev1.Pod); ok {
		return pod, true
	}
	if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		pod, ok := tombstone.Obj.(*corev1.Pod)
		return pod, ok
	}
	return nil, false
}

func toReplicaSet(obj interface{}) (*appsv1.ReplicaSet, bool) {
	rs, ok := obj.(*appsv1.ReplicaSet)
	return rs, ok
}

func emitPodGone(ctx context.Context, out chan<- coreevents.PodGone, event coreevents.PodGone) {
	select {
	case out <- event:
	case <-ctx.Done():
	}
}

func emitReplicaSetObserved(ctx context.Context, out chan<- coreevents.ReplicaSetObserved, event coreevents.ReplicaSetObserved) {
	select {
	case out <- event:
	case <-ctx.Done():
	}
}
