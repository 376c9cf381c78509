package image

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/policy"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	// ErrInvalidImage is returned for images that fail structural validation.
	ErrInvalidImage = errors.New("invalid component image")
	// ErrInvalidFlags is returned for unknown flag bits.
	ErrInvalidFlags = errors.New("invalid load flags")
	// ErrImageTooLarge is returned when an image exceeds the parser's limit.
	ErrImageTooLarge = errors.New("component image too large")
)

// Flags alter validation for file-based loads.
type Flags uint

const (
	// FlagIgnoreModVersions skips the per-symbol version check. Images carry
	// no symbol versions, so it is accepted and has no further effect.
	FlagIgnoreModVersions Flags = 1 << iota
	// FlagIgnoreVermagic skips the vermagic comparison.
	FlagIgnoreVermagic

	knownFlags = FlagIgnoreModVersions | FlagIgnoreVermagic
)

// DefaultMaxSize bounds the size of a single image.
const DefaultMaxSize = 1 << 20

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Info is what the parser extracts from a valid image.
type Info struct {
	Name        string
	Version     string
	Description string
	Vermagic    string
	Depends     []string
}

// Parser validates images.
type Parser struct {
	// MaxSize is the largest accepted image in bytes; zero means DefaultMaxSize.
	MaxSize int
	// Vermagic, when set, must match the image's vermagic attribute.
	Vermagic string
}

type fileRoot struct {
	Modules []*moduleBlock `hcl:"module,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

type moduleBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// Parse validates data and returns the image information.
func (p *Parser) Parse(ctx context.Context, data []byte, filename string, flags Flags) (*Info, error) {
	logger := ctxlog.FromContext(ctx)

	if flags&^knownFlags != 0 {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidFlags, uint(flags))
	}
	maxSize := p.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(data) > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrImageTooLarge, len(data), maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, diags.Error())
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, diags.Error())
	}
	if attrs, _ := root.Remain.JustAttributes(); len(attrs) > 0 {
		return nil, fmt.Errorf("%w: unexpected top-level attributes %s", ErrInvalidImage, attrNames(attrs))
	}
	if len(root.Modules) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one module block, found %d", ErrInvalidImage, len(root.Modules))
	}

	blk := root.Modules[0]
	info := &Info{Name: Normalize(blk.Name)}
	if !namePattern.MatchString(info.Name) {
		return nil, fmt.Errorf("%w: invalid module name %q", ErrInvalidImage, blk.Name)
	}
	if err := decodeAttributes(blk.Body, info); err != nil {
		return nil, fmt.Errorf("%w: module %q: %s", ErrInvalidImage, info.Name, err)
	}

	if p.Vermagic != "" && flags&FlagIgnoreVermagic == 0 && info.Vermagic != p.Vermagic {
		return nil, fmt.Errorf("%w: module %q: vermagic %q does not match %q", ErrInvalidImage, info.Name, info.Vermagic, p.Vermagic)
	}

	logger.Debug("Component image validated.", "component", info.Name, "version", info.Version, "size", len(data))
	return info, nil
}

// Normalize maps a module name to the canonical form used by the policy
// tables, replacing dashes with underscores.
func Normalize(name string) string {
	return policy.Canonical(name)
}

func decodeAttributes(body hcl.Body, info *Info) error {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}

	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return diags
		}

		switch name {
		case "version":
			if err := toGo(val, cty.String, &info.Version); err != nil {
				return fmt.Errorf("attribute %q: %w", name, err)
			}
		case "description":
			if err := toGo(val, cty.String, &info.Description); err != nil {
				return fmt.Errorf("attribute %q: %w", name, err)
			}
		case "vermagic":
			if err := toGo(val, cty.String, &info.Vermagic); err != nil {
				return fmt.Errorf("attribute %q: %w", name, err)
			}
		case "depends":
			if err := toGo(val, cty.List(cty.String), &info.Depends); err != nil {
				return fmt.Errorf("attribute %q: %w", name, err)
			}
		default:
			return fmt.Errorf("unsupported attribute %q", name)
		}
	}
	return nil
}

// toGo converts an HCL value to want and stores it in target.
func toGo(val cty.Value, want cty.Type, target any) error {
	if val.IsNull() {
		return nil
	}
	converted, err := convert.Convert(val, want)
	if err != nil {
		return err
	}
	return gocty.FromCtyValue(converted, target)
}

func attrNames(attrs hcl.Attributes) string {
	names := make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
