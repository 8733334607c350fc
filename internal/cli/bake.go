package cli

import (
	"context"
	"log/slog"

	"github.com/renderforge/kilnd/internal/build"
	"github.com/renderforge/kilnd/internal/fetch"
	"github.com/renderforge/kilnd/internal/manifest"
	"github.com/renderforge/kilnd/internal/registry"
	"github.com/renderforge/kilnd/internal/runtime"
)

// Represents the 'kilnd bake' command.
//
// Bakes a single plan without going through the daemon: the pipeline runs
// in-process against containerd and the command exits when the image is
// exported.
type BakeCmd struct {
	Plan                string   `arg:"" help:"Path to the plan file." type:"existingfile"`
	Root                string   `help:"Build root for resolving manifest and copy sources." default:"." type:"existingdir"`
	Output              string   `short:"o" help:"Directory for the exported image." default:"dist"`
	Platform            []string `short:"p" help:"Target platform (repeatable). Defaults to the host." placeholder:"OS/ARCH"`
	ContainerdAddress   string   `help:"Containerd socket address." default:"${containerd_address}" placeholder:"PATH"`
	ContainerdNamespace string   `help:"Containerd namespace for images and containers." default:"${containerd_namespace}"`
}

// Executes the bake command.
func (c *BakeCmd) Run(ctx context.Context) error {
	plan, err := manifest.Load(c.Plan)
	if err != nil {
		return err
	}

	rt, err := runtime.New(c.ContainerdAddress, c.ContainerdNamespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	fetcher := fetch.New()
	defer fetcher.Close()

	result, err := build.Run(ctx, rt, registry.NewPuller(), fetcher, build.Options{
		Plan:      plan,
		Root:      c.Root,
		Output:    c.Output,
		Platforms: c.Platform,
	})
	if err != nil {
		return err
	}

	slog.Info("bake complete", "plan", plan.Name, "output", result.Output)
	return nil
}
