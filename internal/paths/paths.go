package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	daemonName = "kilnd"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/kilnd or /run/user/<uid>/kilnd
//	macOS:   ~/Library/Caches/kilnd/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, daemonName)
	}
	return filepath.Join(xdg.CacheHome, daemonName, "run")
}

// Default path to the Unix domain socket for CLI-to-daemon communication.
//
//	Linux:   $XDG_RUNTIME_DIR/kilnd/kilnd.sock
//	macOS:   ~/Library/Caches/kilnd/run/kilnd.sock
func Socket() string {
	return filepath.Join(Runtime(), daemonName+".sock")
}

// Default path to the PID file.
//
//	Linux:   $XDG_RUNTIME_DIR/kilnd/kilnd.pid
//	macOS:   ~/Library/Caches/kilnd/run/kilnd.pid
func PIDFile() string {
	return filepath.Join(Runtime(), daemonName+".pid")
}

// Path to the cache directory for base image archives pulled from registries.
//
//	Linux:   ~/.cache/kilnd/images
//	macOS:   ~/Library/Caches/kilnd/images
func ImageCache() string {
	return filepath.Join(xdg.CacheHome, daemonName, "images")
}

// Path to the cache directory for downloaded tool archives.
//
//	Linux:   ~/.cache/kilnd/tools
//	macOS:   ~/Library/Caches/kilnd/tools
func ToolCache() string {
	return filepath.Join(xdg.CacheHome, daemonName, "tools")
}
