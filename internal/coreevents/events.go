// Package coreevents defines the two input events the core state machine
// reacts to. They are deliberately narrow: the core never sees a full
// orchestrator object, only the fields it needs (spec §9, "dynamic-typed
// dict payloads" re-architecture).
package coreevents

import "encoding/json"

// PodGone is raised when a pod that was hosted on this node disappears
// from the orchestrator's view.
type PodGone struct {
	Namespace string
	Name      string
	UID       string
}

// ReplicaSetObserved is raised on every create/update observation of a
// replica-set. Spec is carried as opaque JSON; the core never unmarshals
// it, only persists and returns it verbatim.
type ReplicaSetObserved struct {
	UID  string
	Spec json.RawMessage
}
