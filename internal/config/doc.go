// Package config defines the format-agnostic configuration model for the
// node, along with the Loader interface for reading it from files.
//
// The `config.Model` carries the policy tables and diagnostics settings.
// Concrete loaders, such as for HCL and YAML, live in separate packages and
// are combined by extension with ByExtension.
package config
