// Package yamlconf loads the deferred activation policy from YAML files. It
// accepts the same content as the HCL loader:
//
//	policy:
//	  eligible: [wlan, camera, gpu]
//	  already_active: [ufs_core]
//	  excluded: [touchscreen]
//	  tail: [gpu]
//	diagnostics:
//	  debug: true
//	  pending_interval: 5s
package yamlconf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/specialistvlad/lazyinit/internal/config"
	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

type document struct {
	Policy struct {
		Eligible      []string `yaml:"eligible"`
		AlreadyActive []string `yaml:"already_active"`
		Excluded      []string `yaml:"excluded"`
		Tail          []string `yaml:"tail"`
	} `yaml:"policy"`
	Diagnostics struct {
		Debug           *bool   `yaml:"debug"`
		PendingInterval *string `yaml:"pending_interval"`
	} `yaml:"diagnostics"`
}

// Loader implements config.Loader for YAML.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load decodes each file strictly, rejecting unknown keys, and merges them in
// order.
func (l *Loader) Load(ctx context.Context, files ...string) (*config.Model, error) {
	model := config.NewModel()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file %s: %w", file, err)
		}
		m, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
		}
		m.Sources = []string{file}
		model.Merge(m)
		ctxlog.FromContext(ctx).Debug("Successfully loaded policy from YAML file.", "file", file)
	}
	return model, nil
}

func decode(data []byte) (*config.Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	m := &config.Model{
		Policy: config.Policy{
			Eligible:      doc.Policy.Eligible,
			AlreadyActive: doc.Policy.AlreadyActive,
			Excluded:      doc.Policy.Excluded,
			Tail:          doc.Policy.Tail,
		},
	}
	m.Diagnostics.Debug = doc.Diagnostics.Debug
	if doc.Diagnostics.PendingInterval != nil {
		iv, err := time.ParseDuration(*doc.Diagnostics.PendingInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid pending_interval: %w", err)
		}
		m.Diagnostics.PendingInterval = &iv
	}
	return m, nil
}
