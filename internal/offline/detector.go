// Package offline implements the bounded-timeout control-plane liveness
// probe that gates the entire bidding state machine.
package offline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dlamagna/kubernetes-edge-healer/internal/controlplane"
)

// DefaultTimeout is used when callers pass a zero Duration to IsOffline.
const DefaultTimeout = 1 * time.Second

// New builds a Detector over the given control plane.
func New(cp controlplane.ControlPlane, logger *zap.Logger) *Detector {
	return &Detector{cp: cp, logger: logger}
}

// Detector probes the control plane and folds any failure into "offline".
type Detector struct {
	cp     controlplane.ControlPlane
	logger *zap.Logger
}

// IsOffline returns true if the control plane is unreachable within
// timeout. It never panics and never returns an error to the caller:
// every failure mode (timeout, transport error, any other API error) is
// folded into true. A crude but conservative probe is the correct
// default here, since a false "offline" costs one harmless bid attempt
// while a false "online" merely delays restore by one event.
func (d *Detector) IsOffline(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	err := d.cp.Probe(ctx, timeout)
	if err != nil {
		d.logger.Debug("control-plane probe failed, assuming offline", zap.Error(err))
		return true
	}
	d.logger.Debug("control-plane reachable")
	return false
}
