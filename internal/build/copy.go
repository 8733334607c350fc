package build

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/renderforge/kilnd/internal/runtime"
)

// Executes a plan copy entry, transferring files from the host into the
// container.
//
// The entry has the format "src dest". Relative sources are resolved
// against the build root; relative destinations against the plan workdir.
func copyHost(ctx context.Context, ctr *runtime.Container, entry, workdir, root string) error {
	src, dest, err := parseCopy(entry, workdir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	if !filepath.IsAbs(src) {
		src = filepath.Join(root, src)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	slog.Debug("copy", "src", src, "dest", dest, "dir", info.IsDir())

	if err := ctr.MkdirAll(ctx, filepath.Dir(dest)); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		var writeErr error

		if info.IsDir() {
			writeErr = writeDirToTar(tw, src, filepath.Base(dest))
		} else {
			writeErr = writeFileToTar(tw, src, filepath.Base(dest))
		}

		tw.Close()
		pw.CloseWithError(writeErr)
	}()

	if err := ctr.CopyTo(ctx, pr, filepath.Dir(dest)); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	return nil
}

// Copies a single host file to an exact path inside the container.
func copyHostFile(ctx context.Context, ctr *runtime.Container, hostPath, destPath string) error {
	if err := ctr.MkdirAll(ctx, filepath.Dir(destPath)); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		writeErr := writeFileToTar(tw, hostPath, filepath.Base(destPath))
		tw.Close()
		pw.CloseWithError(writeErr)
	}()

	if err := ctr.CopyTo(ctx, pr, filepath.Dir(destPath)); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	return nil
}

// Copies a path from one stage container into another.
//
// The tar stream is piped directly from the source container's CopyFrom
// to the target container's CopyTo; nothing touches the host filesystem.
func copyBetween(ctx context.Context, src, dst *runtime.Container, path, destDir string) error {
	slog.Debug("cross-stage copy", "src", src.ID(), "dst", dst.ID(), "path", path)

	pr, pw := io.Pipe()

	errc := make(chan error, 1)
	go func() {
		errc <- src.CopyFrom(ctx, pw, path)
		pw.Close()
	}()

	if err := dst.CopyTo(ctx, pr, destDir); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	if err := <-errc; err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	return nil
}

// Parses a copy entry into source and destination paths.
//
// The entry must contain exactly two whitespace-separated tokens. A
// relative dest is joined with workdir.
func parseCopy(entry, workdir string) (src, dest string, err error) {
	parts := strings.Fields(entry)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected source and destination, got %q", entry)
	}

	src = parts[0]
	dest = parts[1]

	if !filepath.IsAbs(dest) {
		if workdir == "" {
			return "", "", fmt.Errorf("relative dest %q requires a workdir", dest)
		}
		dest = filepath.Join(workdir, dest)
	}

	return src, dest, nil
}

// Writes a single file to a tar writer with the given archive name.
func writeFileToTar(tw *tar.Writer, hostPath, name string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Writes a directory tree to a tar writer rooted at the given archive prefix.
func writeDirToTar(tw *tar.Writer, hostDir, prefix string) error {
	return filepath.WalkDir(hostDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}

		archivePath := filepath.ToSlash(filepath.Join(prefix, relPath))
		return writeTarEntry(tw, path, archivePath, d)
	})
}

// Writes a single file or directory entry to a tar writer.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = archivePath

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}
