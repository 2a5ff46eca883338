package main

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// buildK8sConfig uses the in-cluster config baked into every pod when
// inCluster is true, and otherwise loads the kubeconfig at
// kubeconfigPath.
func buildK8sConfig(inCluster bool, kubeconfigPath string) (*rest.Config, error) {
	if !inCluster {
		return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	}
	return rest.InClusterConfig()
}

func buildK8sClient(inCluster bool, kubeconfigPath string) (kubernetes.Interface, error) {
	cfg, err := buildK8sConfig(inCluster, kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("building k8s config: %w", err)
	}
	return kubernetes.NewForConfig(cfg)
}
