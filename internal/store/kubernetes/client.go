package kubernetes

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewClient builds a clientset from the in-cluster service account, falling
// back to the default kubeconfig loading rules. The kubeconfig is returned so
// callers can resolve its namespace; it is nil when running in-cluster.
func NewClient() (kubernetes.Interface, clientcmd.ClientConfig, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		log.Debug().Msg("using in-cluster kubernetes config")

		client, err := kubernetes.NewForConfig(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kubernetes client from in-cluster config: %w", err)
		}
		return client, nil, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	log.Debug().Str("host", restConfig.Host).Msg("using kubeconfig")

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client from kubeconfig: %w", err)
	}

	return client, clientConfig, nil
}
