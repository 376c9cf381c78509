// Package banner provides the "banner" component, which prints one line to
// the application output when activated.
package banner

import (
	"context"
	"fmt"
	"io"

	"github.com/specialistvlad/lazyinit/internal/registry"
)

const Name = "banner"

// Module implements the registry.Module interface for this package.
type Module struct {
	Out  io.Writer
	Text string
}

func (m *Module) init(_ context.Context) error {
	text := m.Text
	if text == "" {
		text = "lazyinit: deferred components online"
	}
	_, err := fmt.Fprintln(m.Out, text)
	return err
}

// Register offers the component.
func (m *Module) Register(r registry.Registrar) {
	r.Register(Name, m.init, "modules/banner")
}
