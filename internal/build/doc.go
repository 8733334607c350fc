// Package build executes bake plans against the container runtime.
//
// A bake is a strictly linear three-stage pipeline. The resolution stage
// runs in a transient container from the builder image and turns the
// plan's package manifest into a complete artifact cache; a single
// unresolvable package aborts the bake. The assembly stage starts from
// the base runtime image, installs system shared libraries, installs the
// language packages from the artifact cache alone (no network
// re-resolution), unpacks the optional versioned tool behind its stable
// symlink, and copies application sources in. The final stage creates the
// restricted execution identity, hands it the owned directories,
// rehearses the healthcheck probe, and exports the container as an OCI
// image whose config carries the entrypoint, environment, user, exposed
// port, and healthcheck.
//
// There is no retry, fallback, or partial-success state anywhere in the
// pipeline: the first failure aborts the bake and no image is produced.
// Multi-platform bakes repeat the pipeline per platform, writing each
// result to a platform-specific output directory.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, puller, fetcher, build.Options{
//	    Plan:      plan,
//	    Root:      ".",
//	    Output:    "dist",
//	    Platforms: []string{"linux/amd64"},
//	})
//	if err != nil {
//	    return err
//	}
package build
