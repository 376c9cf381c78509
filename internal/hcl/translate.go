package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lazyinit/internal/config"
	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// translatePolicy converts a `policy` block body into the agnostic model.
func (l *Loader) translatePolicy(ctx context.Context, body hcl.Body) (*config.Policy, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	p := &config.Policy{}
	targets := map[string]*[]string{
		"eligible":       &p.Eligible,
		"already_active": &p.AlreadyActive,
		"excluded":       &p.Excluded,
		"tail":           &p.Tail,
	}

	for name, attr := range attrs {
		target, ok := targets[name]
		if !ok {
			return nil, fmt.Errorf("%s: unsupported policy attribute %q", attr.NameRange, name)
		}
		if err := decodeAttr(attr, cty.List(cty.String), target); err != nil {
			return nil, err
		}
		ctxlog.FromContext(ctx).Debug("Parsed policy list.", "list", name, "count", len(*target))
	}
	return p, nil
}

// translateDiagnostics converts a `diagnostics` block body into the agnostic model.
func (l *Loader) translateDiagnostics(_ context.Context, body hcl.Body) (*config.Diagnostics, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	d := &config.Diagnostics{}
	for name, attr := range attrs {
		switch name {
		case "debug":
			var v bool
			if err := decodeAttr(attr, cty.Bool, &v); err != nil {
				return nil, err
			}
			d.Debug = &v
		case "pending_interval":
			var s string
			if err := decodeAttr(attr, cty.String, &s); err != nil {
				return nil, err
			}
			iv, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid pending_interval: %w", attr.Expr.Range(), err)
			}
			d.PendingInterval = &iv
		default:
			return nil, fmt.Errorf("%s: unsupported diagnostics attribute %q", attr.NameRange, name)
		}
	}
	return d, nil
}

// decodeAttr evaluates a constant attribute, converts it to want and binds it
// to the Go value pointed to by target.
func decodeAttr(attr *hcl.Attribute, want cty.Type, target any) error {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}
	if val.IsNull() {
		return nil
	}

	converted, err := convert.Convert(val, want)
	if err != nil {
		return fmt.Errorf("%s: attribute %q must be %s: %w", attr.Expr.Range(), attr.Name, want.FriendlyName(), err)
	}
	if err := gocty.FromCtyValue(converted, target); err != nil {
		return fmt.Errorf("%s: attribute %q: %w", attr.Expr.Range(), attr.Name, err)
	}
	return nil
}
