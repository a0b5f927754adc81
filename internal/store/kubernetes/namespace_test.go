package kubernetes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

func kubeconfigWithNamespace(ns string) clientcmd.ClientConfig {
	cfg := clientcmdapi.NewConfig()
	cfg.Clusters["dev"] = &clientcmdapi.Cluster{Server: "https://127.0.0.1:6443"}
	cfg.AuthInfos["dev"] = &clientcmdapi.AuthInfo{}
	cfg.Contexts["dev"] = &clientcmdapi.Context{Cluster: "dev", AuthInfo: "dev", Namespace: ns}
	cfg.CurrentContext = "dev"

	return clientcmd.NewDefaultClientConfig(*cfg, &clientcmd.ConfigOverrides{})
}

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestNamespaceResolver_Resolve(t *testing.T) {
	nsFile := filepath.Join(t.TempDir(), "namespace")
	require.NoError(t, os.WriteFile(nsFile, []byte("from-file\n"), 0600))

	tests := []struct {
		name     string
		resolver NamespaceResolver
		want     string
	}{
		{
			name: "kubeconfig context wins",
			resolver: NamespaceResolver{
				ClientConfig:  kubeconfigWithNamespace("from-kubeconfig"),
				LookupEnv:     env(map[string]string{NamespaceEnv: "from-env"}),
				NamespaceFile: nsFile,
			},
			want: "from-kubeconfig",
		},
		{
			name: "context without namespace falls through to env",
			resolver: NamespaceResolver{
				ClientConfig:  kubeconfigWithNamespace(""),
				LookupEnv:     env(map[string]string{NamespaceEnv: "from-env"}),
				NamespaceFile: nsFile,
			},
			want: "from-env",
		},
		{
			name: "service account file",
			resolver: NamespaceResolver{
				LookupEnv:     env(nil),
				NamespaceFile: nsFile,
			},
			want: "from-file",
		},
		{
			name: "default when nothing is set",
			resolver: NamespaceResolver{
				LookupEnv:     env(nil),
				NamespaceFile: filepath.Join(t.TempDir(), "missing"),
			},
			want: DefaultNamespace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.resolver.Resolve())
		})
	}
}
