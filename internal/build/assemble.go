package build

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/renderforge/kilnd/internal/paths"
	"github.com/renderforge/kilnd/internal/runtime"
)

// Runs the runtime assembly stage inside the base image container.
//
// Step order is load-bearing: system shared libraries go in first so
// language packages can link against them, the artifact cache is copied
// over from the resolver before the installer runs, the installer is
// restricted to that cache (no network resolution), the optional tool is
// fetched and unpacked, and application sources are copied in last. The
// resolver container is destroyed as soon as its artifacts are copied out,
// so nothing from the build toolchain can reach the final image.
func (b *bake) assemble(ctx context.Context, ctr, resolver *runtime.Container) error {
	if err := b.installSystemPackages(ctx, ctr); err != nil {
		return err
	}

	if resolver != nil {
		if err := b.installPackages(ctx, ctr, resolver); err != nil {
			return err
		}
	}

	if b.plan.Tool != nil {
		if err := b.installTool(ctx, ctr); err != nil {
			return err
		}
	}

	for _, entry := range b.plan.Copy {
		if err := copyHost(ctx, ctr, entry, b.plan.Workdir, b.root); err != nil {
			return err
		}
	}

	return nil
}

// Installs the plan's system shared-library packages in one transaction.
func (b *bake) installSystemPackages(ctx context.Context, ctr *runtime.Container) error {
	if len(b.plan.System.Packages) == 0 {
		return nil
	}

	slog.Info("installing system packages", "packages", b.plan.System.Packages)

	command := expandCommand(b.plan.System.Install, map[string]string{
		"packages": strings.Join(b.plan.System.Packages, " "),
	})
	return b.execCommand(ctx, ctr, command)
}

// Copies the artifact cache out of the resolver container and installs
// from it.
//
// The installer template is expanded with the same manifest and artifact
// paths the resolver used, so the assembly stage consumes the resolution
// stage's output verbatim. Once the artifacts are copied over, the
// resolver container is destroyed; after the install, the cache itself is
// removed so it does not ship in the image.
func (b *bake) installPackages(ctx context.Context, ctr, resolver *runtime.Container) error {
	slog.Info("installing packages from artifact cache")

	if err := ctr.MkdirAll(ctx, stageDir); err != nil {
		return err
	}
	if err := copyBetween(ctx, resolver, ctr, artifactsDir, stageDir); err != nil {
		return err
	}
	if err := copyBetween(ctx, resolver, ctr, manifestFile, stageDir); err != nil {
		return err
	}
	resolver.Destroy(ctx)

	command := expandCommand(b.plan.Packages.Install, map[string]string{
		"manifest":  manifestFile,
		"artifacts": artifactsDir,
	})
	if err := b.execCommand(ctx, ctr, command); err != nil {
		return err
	}

	return b.execCommand(ctx, ctr, "rm -rf "+stageDir)
}

// Downloads the plan's tool archive, unpacks it under the versioned home,
// and points the stable symlink at the versioned binary.
//
// The archive is fetched on the host (verified against the plan's SHA-256
// digest, cached across bakes), streamed into the container, and unpacked
// with its top-level directory stripped so the versioned home holds the
// tool directly. Callers inside the image only ever see the stable link;
// upgrading the tool means changing the version in the plan, which lands
// a new versioned home and repoints the link.
func (b *bake) installTool(ctx context.Context, ctr *runtime.Container) error {
	tool := b.plan.Tool
	url := tool.ResolvedURL()

	slog.Info("installing tool", "tool", tool.Name, "version", tool.Version)

	archive := filepath.Join(paths.ToolCache(), urlFileName(url))
	if err := b.fetcher.Download(ctx, url, archive, tool.SHA256); err != nil {
		return fmt.Errorf("%w: %w", ErrTool, err)
	}

	home := tool.VersionedHome()
	staged := stageDir + "/" + urlFileName(url)

	if err := copyHostFile(ctx, ctr, archive, staged); err != nil {
		return err
	}
	if err := ctr.MkdirAll(ctx, home); err != nil {
		return err
	}

	if err := b.execCommand(ctx, ctr, unpackCommand(staged, home)); err != nil {
		return fmt.Errorf("%w: %w", ErrTool, err)
	}

	binary := path.Join(home, tool.Binary)
	link := fmt.Sprintf("mkdir -p %s && ln -sfn %s %s", path.Dir(tool.Link), binary, tool.Link)
	if err := b.execCommand(ctx, ctr, link); err != nil {
		return fmt.Errorf("%w: %w", ErrTool, err)
	}

	return nil
}

// Builds the command that unpacks a staged tool archive into its
// versioned home.
//
// The whole stage directory is removed afterwards, not just the archive:
// staging the tool re-creates the directory that the package install
// cleaned up, and nothing under it may survive into the exported image.
func unpackCommand(staged, home string) string {
	return fmt.Sprintf("tar -xf %s -C %s --strip-components=1 && rm -rf %s", staged, home, stageDir)
}

// Returns the file name component of a URL, without query or fragment.
func urlFileName(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return path.Base(url)
}
