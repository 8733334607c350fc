// Package registry pulls base images from container registries into a
// local archive cache keyed by reference and platform. The runtime package
// imports those archives into containerd; nothing else in the pipeline
// talks to an image registry.
package registry
