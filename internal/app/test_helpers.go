package app

import (
	"context"
	"os"
	"testing"

	"github.com/specialistvlad/lazyinit/internal/config"
	"github.com/specialistvlad/lazyinit/internal/registry"
	"github.com/specialistvlad/lazyinit/internal/testutil"
)

// StaticLoader is a config.Loader that returns a fixed model.
type StaticLoader struct {
	Model *config.Model
	Err   error
}

// Load implements config.Loader.
func (s StaticLoader) Load(context.Context, ...string) (*config.Model, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	m := config.NewModel()
	m.Merge(s.Model)
	return m, nil
}

// TestConfig returns a valid configuration for tests.
func TestConfig() *Config {
	return &Config{
		PolicyPaths: []string{"policy.hcl"},
		LogFormat:   "text",
		LogLevel:    "debug",
		Listen:      "127.0.0.1:0",
	}
}

// SetupAppTest creates a new app instance for system testing.
func SetupAppTest(t *testing.T, cfg *Config, policy config.Policy, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, StaticLoader{Model: &config.Model{Policy: policy}}, modules...)

	t.Cleanup(func() {
		if os.Getenv("LAZYINIT_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
