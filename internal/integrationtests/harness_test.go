package integrationtests

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/lazyinit/internal/app"
	"github.com/specialistvlad/lazyinit/internal/client"
	"github.com/specialistvlad/lazyinit/internal/config"
	"github.com/specialistvlad/lazyinit/internal/hcl"
	"github.com/specialistvlad/lazyinit/internal/registry"
	"github.com/specialistvlad/lazyinit/internal/testutil"
	"github.com/specialistvlad/lazyinit/internal/yamlconf"
	"github.com/stretchr/testify/require"
)

// node is a running app reachable over HTTP.
type node struct {
	app    *app.App
	client *client.Client
	logs   *testutil.SafeBuffer
	dir    string
	stop   func() error
}

// writeFiles lays out files relative to a fresh temporary directory.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

// startNode builds the app from the policy files under dir/policy and serves
// it on a loopback listener.
func startNode(t *testing.T, files map[string]string, mutate func(*app.Config), modules ...registry.Module) *node {
	t.Helper()
	dir := writeFiles(t, files)

	cfg := app.TestConfig()
	cfg.PolicyPaths = []string{filepath.Join(dir, "policy")}
	if mutate != nil {
		mutate(cfg)
	}
	loader := config.ByExtension{".hcl": hcl.NewLoader(), ".yaml": yamlconf.NewLoader()}

	logs := &testutil.SafeBuffer{}
	a := app.NewApp(logs, cfg, loader, modules...)
	t.Cleanup(func() {
		if os.Getenv("LAZYINIT_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, l) }()

	stopped := false
	var result error
	stop := func() error {
		if !stopped {
			stopped = true
			cancel()
			select {
			case result = <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("node did not stop")
			}
		}
		return result
	}
	t.Cleanup(func() { _ = stop() })

	return &node{
		app:    a,
		client: client.New("http://"+l.Addr().String(), ""),
		logs:   logs,
		dir:    dir,
		stop:   stop,
	}
}

func manifest(name string) string {
	return `module "` + name + `" {
  version     = "1.0"
  description = "test component"
}
`
}
