package internal

import (
	"fmt"
	"runtime"
	"strings"
)

// Name used for the daemon binary, socket directory, and log group.
const Name = "kilnd"

// String to indicate a local (non-pipeline) build.
const defaultLocalBuild = "(local)"

var (
	version   = "" // Version number (e.g., "1.2.3")
	gitCommit = "" // Git commit hash (e.g., "a1b2c3d4")
)

// Returns the current version with any "v" prefix stripped.
//
// Empty when the build did not set a version via linker flags.
func Version() string {
	v := strings.TrimSpace(version)
	v = strings.ToLower(v)
	return strings.TrimPrefix(v, "v")
}

// Returns the git commit hash, or the empty string for local builds.
func GitCommit() string {
	return strings.TrimSpace(gitCommit)
}

// Returns true if this is a local (non-pipeline) build.
//
// A build is considered local if either the version or the git commit is
// unset. Pipeline builds should set both variables via linker flags.
func IsLocal() bool {
	return Version() == "" || GitCommit() == ""
}

// Returns a detailed version string.
//
// If this is a local build, returns "(local)". Otherwise, returns a string
// formatted as "<version> <git-commit> [<arch>]".
func VersionString() string {
	if IsLocal() {
		return defaultLocalBuild
	}
	return fmt.Sprintf("%s %s [%s]", Version(), GitCommit(), runtime.GOARCH)
}
