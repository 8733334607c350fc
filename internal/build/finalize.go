package build

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/renderforge/kilnd/internal/manifest"
	"github.com/renderforge/kilnd/internal/runtime"
)

// Runs the identity and entry stage, then exports the final image.
//
// The restricted identity is created only after every root-owned install
// has completed, the owned directories are handed to it, and the
// healthcheck is rehearsed once in the still-running container. Export
// then bakes the privilege switch into the image config: from the first
// process onward the container runs as the plan's identity and nothing
// elevates it back.
func (b *bake) finalize(ctx context.Context, ctr *runtime.Container, output string) error {
	if err := b.createIdentity(ctx, ctr); err != nil {
		return err
	}
	if err := b.chownOwned(ctx, ctr); err != nil {
		return err
	}
	if err := b.rehearseProbe(ctx, ctr); err != nil {
		return err
	}

	if err := ctr.Stop(ctx); err != nil {
		return err
	}

	slog.Info("exporting image", "plan", b.plan.Name, "output", output)
	return ctr.Export(ctx, output, b.imageSettings())
}

// Creates the plan's restricted group and user inside the container.
//
// Both are system accounts with fixed numeric IDs and no login shell. The
// user's home is the plan workdir, which is created here if the assembly
// steps have not already.
func (b *bake) createIdentity(ctx context.Context, ctr *runtime.Container) error {
	id := b.plan.Identity
	slog.Info("creating identity", "user", id.User, "uid", id.UID, "group", id.Group, "gid", id.GID)

	command := fmt.Sprintf(
		"groupadd --system --gid %d %s && useradd --system --uid %d --gid %d --home-dir %s --no-create-home --shell /usr/sbin/nologin %s",
		id.GID, id.Group, id.UID, id.GID, b.plan.Workdir, id.User,
	)
	if err := b.execCommand(ctx, ctr, command); err != nil {
		return err
	}

	return ctr.MkdirAll(ctx, b.plan.Workdir)
}

// Hands the plan's owned directories to the restricted identity.
//
// This runs strictly after all installation steps, so nothing installed
// later can silently revert to root ownership. The workdir is always
// owned; the plan can add more (tool home, log dirs). Owned directories
// that no assembly step created (log and scratch dirs usually have no
// contents at bake time) are created here, so the chown always has a
// target.
func (b *bake) chownOwned(ctx context.Context, ctr *runtime.Container) error {
	dirs := append([]string{b.plan.Workdir}, b.plan.Owned...)
	return b.execCommand(ctx, ctr, ownershipCommand(b.plan.Identity, dirs))
}

// Builds the command that creates the owned directories and assigns them
// to the identity, as one shell transaction.
func ownershipCommand(id manifest.Identity, dirs []string) string {
	joined := strings.Join(dirs, " ")
	return fmt.Sprintf("mkdir -p %s && chown -R %d:%d %s", joined, id.UID, id.GID, joined)
}

// Runs the healthcheck probe once in the assembled container.
//
// A probe that cannot pass immediately after assembly would mark every
// future container of this image unhealthy, so a non-zero exit here fails
// the bake before anything is exported. Plans without a healthcheck skip
// the rehearsal.
func (b *bake) rehearseProbe(ctx context.Context, ctr *runtime.Container) error {
	hc := b.plan.Healthcheck
	if hc == nil {
		return nil
	}

	slog.Info("rehearsing healthcheck", "test", hc.Test)

	result, err := ctr.ExecArgs(ctx, hc.Test)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProbe, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %q exited %d: %s", ErrProbe, strings.Join(hc.Test, " "), result.ExitCode, tail(result.Stderr))
	}

	return nil
}

// Builds the image configuration the export applies on top of the base
// image's config.
func (b *bake) imageSettings() runtime.ImageSettings {
	return runtime.ImageSettings{
		Entrypoint:  b.plan.Entrypoint,
		Env:         environ(b.plan.Env),
		User:        fmt.Sprintf("%d:%d", b.plan.Identity.UID, b.plan.Identity.GID),
		WorkingDir:  b.plan.Workdir,
		ExposedPort: b.plan.Expose,
		Healthcheck: healthConfig(b.plan.Healthcheck),
	}
}

// Converts a plan healthcheck to the Docker-compatible image config form.
//
// The probe is stored as an exec-form test ("CMD" followed by the argv
// vector), never a shell string.
func healthConfig(hc *manifest.Healthcheck) *runtime.HealthConfig {
	if hc == nil {
		return nil
	}
	return &runtime.HealthConfig{
		Test:        append([]string{"CMD"}, hc.Test...),
		Interval:    hc.Interval.Std(),
		Timeout:     hc.Timeout.Std(),
		StartPeriod: hc.StartPeriod.Std(),
		Retries:     hc.Retries,
	}
}
