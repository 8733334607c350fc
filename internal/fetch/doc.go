// Package fetch downloads versioned third-party tool archives for the
// assembly stage.
//
// Downloads are single-shot and fail-fast: any unresolvable host, error
// status, or digest mismatch aborts the build. There is deliberately no
// retry, backoff, or mirror fallback; failure policy belongs to whatever
// invokes the build, not to the pipeline.
package fetch
