package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/specialistvlad/lazyinit/internal/coordinator"
	"github.com/specialistvlad/lazyinit/internal/ctxlog"
	"github.com/specialistvlad/lazyinit/internal/image"
)

// ErrPermission is returned when the caller lacks CapModuleManagement.
var ErrPermission = errors.New("operation not permitted")

// Capability is a bit set of caller privileges.
type Capability uint

const (
	// CapModuleManagement allows loading components.
	CapModuleManagement Capability = 1 << iota
)

// Credentials describe the caller of a load request.
type Credentials struct {
	Capabilities Capability
}

// Has reports whether every bit of c is granted.
func (cr Credentials) Has(c Capability) bool {
	return cr.Capabilities&c == c
}

// Activator is the part of the coordinator the dispatch path uses.
type Activator interface {
	Activate(ctx context.Context, name string) (coordinator.Result, error)
	Completed() bool
}

// ImageParser is the image-handling collaborator.
type ImageParser interface {
	Parse(ctx context.Context, data []byte, filename string, flags image.Flags) (*image.Info, error)
}

// Dispatcher routes load requests to the coordinator.
type Dispatcher struct {
	activator Activator
	parser    ImageParser
	maxSize   int64
}

// New creates a Dispatcher. maxSize bounds how much is read from a file;
// zero means image.DefaultMaxSize.
func New(activator Activator, parser ImageParser, maxSize int64) *Dispatcher {
	if maxSize <= 0 {
		maxSize = image.DefaultMaxSize
	}
	return &Dispatcher{activator: activator, parser: parser, maxSize: maxSize}
}

// InitModule loads a component from image bytes supplied by the caller.
func (d *Dispatcher) InitModule(ctx context.Context, cred Credentials, data []byte, args string) error {
	ctx = requestContext(ctx, "init_module")
	if err := d.admit(ctx, cred); err != nil {
		return err
	}
	if d.activator.Completed() {
		ctxlog.FromContext(ctx).Debug("All components already loaded, ignoring request.")
		return nil
	}

	// The caller may reuse its buffer once we return.
	img := make([]byte, len(data))
	copy(img, data)
	return d.load(ctx, img, "<memory>", args, 0)
}

// FinitModule loads a component from an open file.
func (d *Dispatcher) FinitModule(ctx context.Context, cred Credentials, f *os.File, args string, flags image.Flags) error {
	ctx = requestContext(ctx, "finit_module")
	if err := d.admit(ctx, cred); err != nil {
		return err
	}
	if d.activator.Completed() {
		ctxlog.FromContext(ctx).Debug("All components already loaded, ignoring request.")
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(f, d.maxSize+1))
	if err != nil {
		return fmt.Errorf("failed to read component image %s: %w", f.Name(), err)
	}
	if int64(len(data)) > d.maxSize {
		return fmt.Errorf("%w: %s exceeds %d bytes", image.ErrImageTooLarge, f.Name(), d.maxSize)
	}
	return d.load(ctx, data, f.Name(), args, flags)
}

func (d *Dispatcher) admit(ctx context.Context, cred Credentials) error {
	if !cred.Has(CapModuleManagement) {
		ctxlog.FromContext(ctx).Warn("Load request rejected, caller lacks module management capability.")
		return ErrPermission
	}
	return nil
}

func (d *Dispatcher) load(ctx context.Context, data []byte, filename, args string, flags image.Flags) error {
	logger := ctxlog.FromContext(ctx)

	info, err := d.parser.Parse(ctx, data, filename, flags)
	if err != nil {
		logger.Error("Component image has invalid structure.", "file", filename, "error", err)
		return err
	}

	ctx = ctxlog.With(ctx, "component", info.Name)
	if args != "" {
		// Parameters belong to the init routine's eager path; deferred
		// routines take none.
		ctxlog.FromContext(ctx).Debug("Ignoring component parameters.", "args", args)
	}

	res, err := d.activator.Activate(ctx, info.Name)
	if err != nil {
		return err
	}
	if res.InitErr != nil {
		ctxlog.FromContext(ctx).Warn("Component init routine failed.", "error", res.InitErr)
	}
	if res.Completed {
		ctxlog.FromContext(ctx).Info("Deferred activation complete.")
	}
	return nil
}

func requestContext(ctx context.Context, op string) context.Context {
	return ctxlog.With(ctx, "request_id", uuid.NewString(), "op", op)
}
