package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/containerd/platforms"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/renderforge/kilnd/internal/paths"
)

// Pulls base images from remote registries into a local archive cache.
//
// The runtime consumes images as local archives only; this is the single
// place where the network is touched for base images. Pulled archives are
// cached by reference and platform, so repeated bakes of the same plan
// skip the pull entirely.
type Puller struct {
	cacheDir string
}

// Creates a puller backed by the default image cache directory.
func NewPuller() *Puller {
	return &Puller{cacheDir: paths.ImageCache()}
}

// Creates a puller backed by a specific cache directory.
func NewPullerAt(dir string) *Puller {
	return &Puller{cacheDir: dir}
}

// Ensures the image for the given reference and platform is available as a
// local archive, pulling it if necessary, and returns the archive path.
//
// A pull failure is fatal to the bake; there is no fallback registry.
func (p *Puller) Pull(ctx context.Context, ref, platform string) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrBadReference, ref, err)
	}

	target, err := parsePlatform(platform)
	if err != nil {
		return "", err
	}

	archive := p.archivePath(ref, platform)
	if _, err := os.Stat(archive); err == nil {
		slog.Debug("image cache hit", "ref", ref, "platform", platform)
		return archive, nil
	}

	slog.Info("pulling base image", "ref", ref, "platform", platform)

	img, err := remote.Image(parsed,
		remote.WithContext(ctx),
		remote.WithPlatform(target),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPull, ref, err)
	}

	if err := p.writeArchive(parsed, img, archive); err != nil {
		return "", err
	}

	return archive, nil
}

// Writes the image to the cache as a tar archive, atomically.
func (p *Puller) writeArchive(ref name.Reference, img v1.Image, archive string) error {
	if err := os.MkdirAll(p.cacheDir, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrPull, err)
	}

	tmp, err := os.CreateTemp(p.cacheDir, "pull-*.tar")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPull, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tarball.Write(ref, img, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrPull, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrPull, err)
	}

	if err := os.Rename(tmpName, archive); err != nil {
		return fmt.Errorf("%w: %w", ErrPull, err)
	}

	slog.Debug("image cached", "archive", archive)
	return nil
}

// Returns the cache path for a reference and platform.
//
// The reference and platform are hashed so the filename is always safe
// regardless of which characters the reference contains.
func (p *Puller) archivePath(ref, platform string) string {
	h := sha256.Sum256([]byte(ref + "|" + platform))
	return filepath.Join(p.cacheDir, hex.EncodeToString(h[:])+".tar")
}

// Parses an OCI platform string into the pull target platform.
func parsePlatform(platform string) (v1.Platform, error) {
	parsed, err := platforms.Parse(platform)
	if err != nil {
		return v1.Platform{}, fmt.Errorf("%w: %q: %w", ErrBadPlatform, platform, err)
	}
	return v1.Platform{
		OS:           parsed.OS,
		Architecture: parsed.Architecture,
		Variant:      parsed.Variant,
	}, nil
}
