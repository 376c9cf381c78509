package app

import (
	"io"

	"github.com/specialistvlad/lazyinit/internal/registry"
	"github.com/specialistvlad/lazyinit/modules/banner"
	"github.com/specialistvlad/lazyinit/modules/envvars"
	"github.com/specialistvlad/lazyinit/modules/notifier"
	"github.com/specialistvlad/lazyinit/modules/powermeter"
)

// closer is implemented by modules that own background work.
type closer interface {
	Close()
}

// coreModules is the definitive list of all components compiled into the
// lazyinit binary.
func coreModules(cfg *Config, outW io.Writer) []registry.Module {
	return []registry.Module{
		envvars.New(),
		&banner.Module{Out: outW, Text: cfg.Banner},
		powermeter.New(cfg.PowerMeter),
		notifier.New(cfg.Notifier),
	}
}
