package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/renderforge/kilnd/internal/fetch"
	"github.com/renderforge/kilnd/internal/manifest"
	"github.com/renderforge/kilnd/internal/paths"
	"github.com/renderforge/kilnd/internal/registry"
	"github.com/renderforge/kilnd/internal/runtime"
)

// Working directory inside stage containers for pipeline intermediates.
//
// The package manifest is copied here and the resolver writes the artifact
// cache here. The directory is removed from the assembly container before
// export so intermediates never ship in the final image.
const (
	stageDir     = "/var/lib/kiln"
	artifactsDir = stageDir + "/artifacts"
)

// Holds shared state for baking a plan across all target platforms.
type bake struct {
	rt         *runtime.Runtime     // Container runtime for image and container operations.
	puller     *registry.Puller     // Base image puller.
	fetcher    *fetch.Fetcher       // Tool archive fetcher.
	plan       *manifest.Plan       // Plan being baked.
	root       string               // Build root for manifest and copy sources.
	output     string               // Output directory for the final image.
	platforms  []string             // Target platforms to bake for.
	containers []*runtime.Container // Stage containers, destroyed after the bake completes.
}

// Creates a new [bake] from the given options.
func newBake(rt *runtime.Runtime, puller *registry.Puller, fetcher *fetch.Fetcher, opts Options) *bake {
	return &bake{
		rt:        rt,
		puller:    puller,
		fetcher:   fetcher,
		plan:      opts.Plan,
		root:      opts.Root,
		output:    opts.Output,
		platforms: opts.Platforms,
	}
}

// Runs the pipeline for every target platform.
//
// All stage containers are destroyed when the bake completes, successful
// or not.
func (b *bake) run(ctx context.Context) (*Result, error) {
	defer b.destroyContainers(ctx)

	for _, platform := range b.platforms {
		if err := b.bakePlatform(ctx, platform); err != nil {
			return nil, fmt.Errorf("%w: platform %s: %w", ErrBake, platform, err)
		}
	}

	return &Result{Output: b.output}, nil
}

// Runs the full three-stage pipeline for a single platform.
//
// The resolution stage runs in a transient container from the builder
// image; the assembly stage consumes its artifact cache and everything
// else happens in a container from the base image, which is exported as
// the final image. The resolver container is destroyed as soon as the
// artifacts have been copied out.
func (b *bake) bakePlatform(ctx context.Context, platform string) error {
	slog.Info("baking platform", "plan", b.plan.Name, "platform", platform)

	output := b.platformOutput(platform)
	if err := os.MkdirAll(output, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	reqs, err := b.loadRequirements()
	if err != nil {
		return err
	}

	var resolver *runtime.Container
	if len(reqs) > 0 {
		resolver, err = b.resolve(ctx, platform, reqs)
		if err != nil {
			return fmt.Errorf("resolution stage: %w", err)
		}
	}

	ctr, err := b.startStage(ctx, b.plan.Base, "assemble", platform)
	if err != nil {
		return fmt.Errorf("assembly stage: %w", err)
	}

	if err := b.assemble(ctx, ctr, resolver); err != nil {
		return fmt.Errorf("assembly stage: %w", err)
	}

	if err := b.finalize(ctx, ctr, output); err != nil {
		return fmt.Errorf("finalize stage: %w", err)
	}

	return nil
}

// Reads and parses the plan's package manifest from the build root.
//
// Returns nil when the plan declares no manifest. Parsing happens before
// any container starts so a malformed manifest fails the bake without
// touching the runtime.
func (b *bake) loadRequirements() ([]manifest.Requirement, error) {
	if b.plan.Packages.Manifest == "" {
		return nil, nil
	}

	path := b.manifestPath()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", manifest.ErrManifestRead, err)
	}
	defer f.Close()

	reqs, err := manifest.ParseRequirements(f)
	if err != nil {
		return nil, err
	}

	slog.Debug("package manifest loaded", "path", path, "packages", len(reqs))
	return reqs, nil
}

// Returns the host path of the package manifest.
func (b *bake) manifestPath() string {
	if filepath.IsAbs(b.plan.Packages.Manifest) {
		return b.plan.Packages.Manifest
	}
	return filepath.Join(b.root, b.plan.Packages.Manifest)
}

// Pulls a stage's image and starts its container.
func (b *bake) startStage(ctx context.Context, ref, stage, platform string) (*runtime.Container, error) {
	archive, err := b.puller.Pull(ctx, ref, platform)
	if err != nil {
		return nil, err
	}

	ctr, err := b.rt.StartContainer(ctx, archive, b.containerID(stage, platform), platform)
	if err != nil {
		return nil, err
	}

	b.containers = append(b.containers, ctr)
	return ctr, nil
}

// Destroys all stage containers.
func (b *bake) destroyContainers(ctx context.Context) {
	for _, ctr := range b.containers {
		ctr.Destroy(ctx)
	}
}

// Returns a unique container ID for a stage, scoped to this plan and platform.
func (b *bake) containerID(stage, platform string) string {
	return fmt.Sprintf("%s-%s-%s", b.plan.Name, platformSlug(platform), stage)
}

// Returns the output directory for a specific platform.
//
// When baking for a single platform, the output directory is left as-is
// to preserve the {output}/image.tar convention. Multi-platform bakes get
// a subdirectory per platform (e.g., {output}/linux-amd64).
func (b *bake) platformOutput(platform string) string {
	if len(b.platforms) == 1 {
		return b.output
	}
	return filepath.Join(b.output, platformSlug(platform))
}

// Converts a platform string to a filesystem-safe slug.
//
// Replaces slashes with dashes (e.g., "linux/amd64" becomes "linux-amd64").
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}
