package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dlamagna/kubernetes-edge-healer/internal/agent"
	"github.com/dlamagna/kubernetes-edge-healer/internal/config"
	"github.com/dlamagna/kubernetes-edge-healer/internal/controlplane"
	"github.com/dlamagna/kubernetes-edge-healer/internal/gossip/serftransport"
	"github.com/dlamagna/kubernetes-edge-healer/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the edge-healer agent for this node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("serve: build logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("edge-healer starting",
		zap.String("node", cfg.NodeName),
		zap.String("gossip_addr", cfg.GossipAddr),
		zap.Bool("in_cluster", cfg.InCluster),
	)

	clientset, err := buildK8sClient(cfg.InCluster, cfg.KubeconfigPath)
	if err != nil {
		return fmt.Errorf("serve: build k8s client: %w", err)
	}

	a, err := agent.New(agent.Config{
		NodeName:     cfg.NodeName,
		MetricsAddr:  cfg.MetricsAddr(),
		CachePath:    cfg.CachePath,
		ControlPlane: controlplane.New(clientset, cfg.NodeName),
		Transport:    serftransport.New(cfg.GossipAddr),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("serve: build agent: %w", err)
	}

	return a.Run(ctx)
}
