// Package notifier provides the "notifier" component. On activation it
// connects to a socket.io hub and announces that the node's deferred
// components are coming online.
package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const Name = "notifier"

var ErrNoHub = errors.New("notifier hub URL is not configured")

// Config describes the hub.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	Timeout            time.Duration
	InsecureSkipVerify bool
	// Node identifies this process in the announcement.
	Node string
}

// Module implements the registry.Module interface for this package.
type Module struct {
	Config Config
}

// New returns a module for cfg.
func New(cfg Config) *Module {
	return &Module{Config: cfg}
}

func (m *Module) init(ctx context.Context) error {
	cfg := m.Config
	if cfg.URL == "" {
		return ErrNoHub
	}
	if cfg.Event == "" {
		cfg.Event = "component_ready"
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := ctxlog.FromContext(ctx).With("component", Name, "url", cfg.URL, "event", cfg.Event)

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsed.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), opts)
	io := manager.Socket(cfg.Namespace, opts)
	defer io.Disconnect()

	done := make(chan error, 1)
	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Connected to hub, announcing.", "sid", io.Id())
		io.Emit(cfg.Event, map[string]any{"node": cfg.Node, "component": Name})
		select {
		case done <- nil:
		default:
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			} else {
				err = fmt.Errorf("connect_error: %v", errs[0])
			}
		}
		select {
		case done <- err:
		default:
		}
	})

	io.Connect()

	timer := time.NewTimer(cfg.Timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to reach hub: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("timed out after %s waiting for hub connection", cfg.Timeout)
	}
}

// Register offers the component.
func (m *Module) Register(r registry.Registrar) {
	r.Register(Name, m.init, "modules/notifier")
}
