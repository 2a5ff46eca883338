// Package watch adapts raw orchestrator objects into the core's two
// input events. It holds no state and makes no API calls of its own.
package watch

import (
	"encoding/json"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/dlamagna/kubernetes-edge-healer/internal/coreevents"
)

// PodGoneFrom builds a PodGone event from a pod that disappeared or was
// resumed as already-deleted on this node.
func PodGoneFrom(pod *corev1.Pod) coreevents.PodGone {
	return coreevents.PodGone{
		Namespace: pod.Namespace,
		Name:      pod.Name,
		UID:       string(pod.UID),
	}
}

// ReplicaSetObservedFrom serializes a full ReplicaSet object into a
// ReplicaSetObserved event. The whole object is persisted rather than
// only its .spec sub-tree, so a rebind after a restart has the complete
// owner reference and label set available without a round trip back to
// the API server.
func ReplicaSetObservedFrom(rs *appsv1.ReplicaSet) (coreevents.ReplicaSetObserved, error) {
	blob, err := json.Marshal(rs)
	if err != nil {
		return coreevents.ReplicaSetObserved{}, fmt.Errorf("watch: marshal replicaset %s: %w", rs.UID, err)
	}
	return coreevents.ReplicaSetObserved{
		UID:  string(rs.UID),
		Spec: blob,
	}, nil
}
