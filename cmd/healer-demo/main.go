// Command healer-demo runs a handful of edge-healer agents in one
// process, wired together with the in-process epidemic gossip
// transport and a shared fake control plane, to demonstrate the
// bid-and-bind protocol without a real cluster.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dlamagna/kubernetes-edge-healer/internal/agent"
	"github.com/dlamagna/kubernetes-edge-healer/internal/gossip/epidemictransport"
)

const (
	nodeAddrPattern = "127.0.0.1:98%02d"
	numNodes        = 4
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cp := newFakeControlPlane()

	addrs := make([]string, numNodes)
	for i := 0; i < numNodes; i++ {
		addrs[i] = fmt.Sprintf(nodeAddrPattern, i)
	}

	cacheDir, err := os.MkdirTemp("", "healer-demo-cache")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(cacheDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agents := make([]*agent.Agent, numNodes)
	for i := 0; i < numNodes; i++ {
		nodeName := fmt.Sprintf("node-%d", i)
		seeds := otherAddrs(addrs, i)
		transport := epidemictransport.New(nodeName, addrs[i], seeds)

		a, err := agent.New(agent.Config{
			NodeName:     nodeName,
			MetricsAddr:  fmt.Sprintf(":91%02d", i),
			CachePath:    filepath.Join(cacheDir, nodeName+".db"),
			ControlPlane: cp,
			Transport:    transport,
			Logger:       logger.Named(nodeName),
		})
		if err != nil {
			panic(err)
		}
		agents[i] = a

		go func() {
			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("agent exited", zap.String("node", nodeName), zap.Error(err))
			}
		}()
	}

	// Give every node a distinct amount of free CPU so the bidding
	// outcome in the scenario below is deterministic: node-3 has the
	// most capacity and should win the restore.
	for i, a := range agents {
		a.Advertise(int64(1000 * (i + 1)))
	}

	time.Sleep(3 * time.Second)
	logger.Info("gossip converged, simulating control-plane outage")
	cp.SetOffline(true)

	cp.KillPod("default", "busybox-spread-0", "uid-demo-1")

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if winner, ok := cp.Winner("default", "busybox-spread-0"); ok {
				logger.Info("pod restored", zap.String("winner", winner))
				cp.SetOffline(false)
				return
			}
		case <-deadline:
			logger.Warn("pod was not restored within the demo window")
			return
		}
	}
}

func otherAddrs(all []string, skip int) []string {
	out := make([]string, 0, len(all)-1)
	for i, addr := range all {
		if i != skip {
			out = append(out, addr)
		}
	}
	return out
}
