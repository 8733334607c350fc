package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/renderforge/kilnd/internal/fetch"
	"github.com/renderforge/kilnd/internal/manifest"
	"github.com/renderforge/kilnd/internal/paths"
	"github.com/renderforge/kilnd/internal/registry"
	"github.com/renderforge/kilnd/internal/runtime"
)

// Controls plan execution.
type Options struct {
	Plan      *manifest.Plan // Plan to bake.
	Root      string         // Build root, for resolving manifest and copy sources.
	Output    string         // Directory for the exported image.
	Platforms []string       // Target platforms (e.g., ["linux/amd64"]). Defaults to host.
}

// Returned after a successful bake.
type Result struct {
	Output string // Directory containing the exported image.
}

// Bakes a plan against the container runtime.
//
// The pipeline is strictly linear: dependency resolution in a transient
// builder container, runtime assembly in a container from the base image,
// then identity and entry finalization, with the assembly container
// exported as the final image. Each target platform runs the full
// pipeline independently. Any stage failure aborts the whole bake with no
// partial output.
func Run(ctx context.Context, rt *runtime.Runtime, puller *registry.Puller, fetcher *fetch.Fetcher, opts Options) (*Result, error) {
	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{runtime.DefaultPlatform()}
	}

	slog.Info("baking plan",
		"plan", opts.Plan.Name,
		"base", opts.Plan.Base,
		"output", opts.Output,
		"platforms", opts.Platforms,
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	return newBake(rt, puller, fetcher, opts).run(ctx)
}
