package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/lazyinit/internal/config"
	"github.com/specialistvlad/lazyinit/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is a struct used to decode all possible top-level blocks from any
// file. Anything else at the top level is rejected by the decoder.
type fileRoot struct {
	Policies    []*block `hcl:"policy,block"`
	Diagnostics []*block `hcl:"diagnostics,block"`
}

type block struct {
	Body hcl.Body `hcl:",remain"`
}

// Load parses each file and merges every block into one model, in order.
func (l *Loader) Load(ctx context.Context, files ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "file_count", len(files))

	parser := hclparse.NewParser()
	model := config.NewModel()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		fileModel := config.NewModel()
		fileModel.Sources = []string{file}
		for _, b := range root.Policies {
			p, err := l.translatePolicy(ctx, b.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to process policy block in %s: %w", file, err)
			}
			fileModel.Merge(&config.Model{Policy: *p})
		}
		for _, b := range root.Diagnostics {
			d, err := l.translateDiagnostics(ctx, b.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to process diagnostics block in %s: %w", file, err)
			}
			fileModel.Merge(&config.Model{Diagnostics: *d})
		}

		model.Merge(fileModel)
		logger.Debug("Successfully loaded policy from HCL file.", "file", file, "policy_blocks", len(root.Policies))
	}

	return model, nil
}
