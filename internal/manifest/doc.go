// Package manifest defines the bake plan format and the package manifest
// format consumed by the build pipeline.
//
// A plan is a YAML document describing one runtime image variant: its base
// and builder images, package manifest, system libraries, optional bundled
// tool, execution identity, environment, liveness probe, and entrypoint.
// Plans are immutable once loaded and fully validated up front, so the
// pipeline never re-checks structural conditions mid-build.
//
// A package manifest is an ordered list of (name, version-constraint)
// lines in requirements format. It is consumed exactly once, by the
// resolution stage; MissingArtifacts verifies afterwards that every entry
// produced an installable artifact.
//
// Example usage:
//
//	plan, err := manifest.Load("plans/render-gpu.yaml")
//	if err != nil {
//	    return err
//	}
//
//	f, err := os.Open(plan.Packages.Manifest)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	reqs, err := manifest.ParseRequirements(f)
//	if err != nil {
//	    return err
//	}
package manifest
