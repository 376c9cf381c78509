package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/fsutil"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the given files and translates them into the
	// format-agnostic model.
	Load(ctx context.Context, files ...string) (*Model, error)
}

// ByExtension dispatches files to loaders keyed by file extension
// (including the dot). Directories are walked recursively.
type ByExtension map[string]Loader

// Load implements Loader. Files are loaded in lexical order so that merging
// is deterministic.
func (b ByExtension) Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	exts := make([]string, 0, len(b))
	for ext := range b {
		exts = append(exts, ext)
	}

	files, err := fsutil.FindFiles(paths, exts...)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	logger.Debug("Discovered configuration files.", "count", len(files))

	model := NewModel()
	for _, file := range files {
		loader, ok := b[strings.ToLower(filepath.Ext(file))]
		if !ok {
			return nil, fmt.Errorf("no loader for configuration file %s", file)
		}
		m, err := loader.Load(ctx, file)
		if err != nil {
			return nil, err
		}
		model.Merge(m)
	}

	logger.Debug("Configuration loading complete.",
		"files", len(model.Sources),
		"eligible", len(model.Policy.Eligible),
		"already_active", len(model.Policy.AlreadyActive),
		"excluded", len(model.Policy.Excluded),
		"tail", len(model.Policy.Tail))
	return model, nil
}
