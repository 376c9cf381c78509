package powermeter

import (
	"context"

	"github.com/specialistvlad/lazyinit/internal/registry"
)

const Name = "powermeter"

// Module implements the registry.Module interface for this package.
type Module struct {
	Config Config

	meter *Meter
}

// New returns a module for cfg.
func New(cfg Config) *Module {
	return &Module{Config: cfg}
}

// Meter returns the running meter, or nil if the component never activated.
func (m *Module) Meter() *Meter {
	return m.meter
}

// Close stops recording.
func (m *Module) Close() {
	if m.meter != nil {
		m.meter.Stop()
	}
}

func (m *Module) init(ctx context.Context) error {
	meter, err := NewMeter(m.Config)
	if err != nil {
		return err
	}
	if err := meter.Start(ctx); err != nil {
		return err
	}
	m.meter = meter
	return nil
}

// Register offers the component.
func (m *Module) Register(r registry.Registrar) {
	r.Register(Name, m.init, "modules/powermeter")
}
