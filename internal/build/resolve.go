package build

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/renderforge/kilnd/internal/manifest"
	"github.com/renderforge/kilnd/internal/runtime"
)

// Path of the package manifest inside stage containers.
const manifestFile = stageDir + "/requirements.txt"

// Runs the dependency resolution stage.
//
// A transient container is started from the builder image, the package
// manifest is copied in, and the resolver command turns every manifest
// entry into an installable artifact in the artifact cache. After the
// resolver runs, the cache is checked against the manifest: every entry
// must have a matching artifact, or the bake aborts. A partially
// populated cache is never consumed.
//
// The returned container holds the artifact cache for the assembly stage
// to copy out; the caller destroys it once the copy completes.
func (b *bake) resolve(ctx context.Context, platform string, reqs []manifest.Requirement) (*runtime.Container, error) {
	slog.Info("resolving dependencies", "builder", b.plan.Builder, "packages", len(reqs))

	ctr, err := b.startStage(ctx, b.plan.Builder, "resolve", platform)
	if err != nil {
		return nil, err
	}

	if err := ctr.MkdirAll(ctx, artifactsDir); err != nil {
		return nil, err
	}
	if err := copyHostFile(ctx, ctr, b.manifestPath(), manifestFile); err != nil {
		return nil, err
	}

	command := expandCommand(b.plan.Packages.Resolve, map[string]string{
		"manifest":  manifestFile,
		"artifacts": artifactsDir,
	})
	if err := b.execCommand(ctx, ctr, command); err != nil {
		return nil, err
	}

	if err := b.checkArtifacts(ctx, ctr, reqs); err != nil {
		return nil, err
	}

	return ctr, nil
}

// Verifies that the artifact cache covers the whole manifest.
//
// Resolution is all-or-nothing: a single unresolvable package fails the
// bake, even if every other artifact is present.
func (b *bake) checkArtifacts(ctx context.Context, ctr *runtime.Container, reqs []manifest.Requirement) error {
	files, err := ctr.ListDir(ctx, artifactsDir)
	if err != nil {
		return err
	}

	missing := manifest.MissingArtifacts(reqs, files)
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, req := range missing {
			names[i] = req.Name
		}
		return fmt.Errorf("%w: no artifact for %s", ErrMissingArtifacts, strings.Join(names, ", "))
	}

	slog.Debug("artifact cache complete", "artifacts", len(files), "packages", len(reqs))
	return nil
}

// Runs a shell command inside a stage container, with the plan's env vars
// applied. A non-zero exit code fails the bake.
func (b *bake) execCommand(ctx context.Context, ctr *runtime.Container, command string) error {
	slog.Debug("run", "container", ctr.ID(), "command", command)

	result, err := ctr.Exec(ctx, "/bin/sh", command, environ(b.plan.Env), "")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %q exited %d: %s", ErrCommandFailed, command, result.ExitCode, tail(result.Stderr))
	}
	return nil
}

// Expands {placeholder} tokens in a command template.
func expandCommand(template string, values map[string]string) string {
	expanded := template
	for key, value := range values {
		expanded = strings.ReplaceAll(expanded, "{"+key+"}", value)
	}
	return expanded
}

// Formats a plan env map as "key=value" strings with a stable order.
//
// Exec order does not matter, but the same list is baked into the image
// config, which must be byte-stable across bakes.
func environ(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := slices.Sorted(maps.Keys(env))

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}

// Returns the last portion of command output for error messages.
func tail(s string) string {
	const max = 512
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
