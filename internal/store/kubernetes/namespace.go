package kubernetes

import (
	"os"
	"strings"

	"k8s.io/client-go/tools/clientcmd"
)

const (
	// DefaultNamespace is used when no other source names a namespace.
	DefaultNamespace = "default"

	// NamespaceEnv is the downward API variable holding the pod namespace.
	NamespaceEnv = "POD_NAMESPACE"

	// ServiceAccountNamespaceFile is mounted into every pod by the kubelet.
	ServiceAccountNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"
)

// NamespaceResolver picks the namespace holding the CA secret. Sources are
// consulted in order: the kubeconfig current context, NamespaceEnv, the
// service account namespace file, then DefaultNamespace.
type NamespaceResolver struct {
	// ClientConfig is the loaded kubeconfig, nil when running in-cluster.
	ClientConfig clientcmd.ClientConfig

	LookupEnv     func(key string) (string, bool)
	NamespaceFile string
}

// NewNamespaceResolver returns a resolver reading the process environment and
// the standard service account mount.
func NewNamespaceResolver(clientConfig clientcmd.ClientConfig) *NamespaceResolver {
	return &NamespaceResolver{
		ClientConfig:  clientConfig,
		LookupEnv:     os.LookupEnv,
		NamespaceFile: ServiceAccountNamespaceFile,
	}
}

func (r *NamespaceResolver) Resolve() string {
	if ns := r.fromKubeconfig(); ns != "" {
		return ns
	}

	if r.LookupEnv != nil {
		if ns, ok := r.LookupEnv(NamespaceEnv); ok && strings.TrimSpace(ns) != "" {
			return strings.TrimSpace(ns)
		}
	}

	if r.NamespaceFile != "" {
		if data, err := os.ReadFile(r.NamespaceFile); err == nil {
			if ns := strings.TrimSpace(string(data)); ns != "" {
				return ns
			}
		}
	}

	return DefaultNamespace
}

// fromKubeconfig returns the namespace explicitly set on the current context.
// clientcmd falls back to "default" on its own, which would mask the other sources.
func (r *NamespaceResolver) fromKubeconfig() string {
	if r.ClientConfig == nil {
		return ""
	}

	raw, err := r.ClientConfig.RawConfig()
	if err != nil {
		return ""
	}

	kctx, ok := raw.Contexts[raw.CurrentContext]
	if !ok || kctx == nil {
		return ""
	}

	return kctx.Namespace
}
