package runtime

import (
	"fmt"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Docker-compatible healthcheck description embedded in the image config.
//
// The OCI image spec has no healthcheck field; Docker and compatible
// runtimes read this extension from the config JSON. Test is an argv
// vector prefixed with "CMD" (exec form, no shell).
type HealthConfig struct {
	Test        []string      `json:"Test,omitempty"`
	Interval    time.Duration `json:"Interval,omitempty"`
	Timeout     time.Duration `json:"Timeout,omitempty"`
	StartPeriod time.Duration `json:"StartPeriod,omitempty"`
	Retries     int           `json:"Retries,omitempty"`
}

// The runtime configuration applied to an exported image.
//
// All fields are optional; zero values leave the base image's config
// untouched. Env entries are merged over the base env, replacing entries
// with the same key and appending the rest in order.
type ImageSettings struct {
	Entrypoint  []string      // Process to launch, exec form.
	Env         []string      // "KEY=value" entries merged over the base env.
	User        string        // Execution identity ("uid:gid" or a user name).
	WorkingDir  string        // Working directory for the launched process.
	ExposedPort int           // Inbound TCP port, 0 for none.
	Healthcheck *HealthConfig // Periodic liveness probe.
}

// Extends the OCI image config block with the healthcheck field.
type imageConfig struct {
	ocispec.ImageConfig
	Healthcheck *HealthConfig `json:"Healthcheck,omitempty"`
}

// Mirrors ocispec.Image with the extended config block. The shallower
// Config field shadows the embedded one during JSON (un)marshalling.
type configFile struct {
	ocispec.Image
	Config imageConfig `json:"config,omitempty"`
}

// Applies the settings to an image config.
func (s *ImageSettings) apply(config *imageConfig) {
	if len(s.Entrypoint) > 0 {
		config.Entrypoint = s.Entrypoint
		config.Cmd = nil
	}
	if len(s.Env) > 0 {
		config.Env = overlayEnv(config.Env, s.Env)
	}
	if s.User != "" {
		config.User = s.User
	}
	if s.WorkingDir != "" {
		config.WorkingDir = s.WorkingDir
	}
	if s.ExposedPort > 0 {
		if config.ExposedPorts == nil {
			config.ExposedPorts = make(map[string]struct{}, 1)
		}
		config.ExposedPorts[portKey(s.ExposedPort)] = struct{}{}
	}
	if s.Healthcheck != nil {
		config.Healthcheck = s.Healthcheck
	}
}

// Merges override env entries over a base env slice, preserving order.
//
// Unlike mergeEnv (which feeds an OCI process spec, where ordering is
// irrelevant), the result here is serialized into the image config and
// must be deterministic: base entries keep their positions, overridden
// values are replaced in place, and new entries are appended in the order
// given.
func overlayEnv(base, overrides []string) []string {
	result := make([]string, len(base), len(base)+len(overrides))
	copy(result, base)

	index := make(map[string]int, len(base))
	for i, entry := range base {
		if k, _, ok := cutEnv(entry); ok {
			index[k] = i
		}
	}

	for _, entry := range overrides {
		k, _, ok := cutEnv(entry)
		if !ok {
			continue
		}
		if i, exists := index[k]; exists {
			result[i] = entry
			continue
		}
		index[k] = len(result)
		result = append(result, entry)
	}

	return result
}

// Splits an env entry into key and value.
func cutEnv(entry string) (key, value string, ok bool) {
	for i := 0; i < len(entry); i++ {
		if entry[i] == '=' {
			return entry[:i], entry[i+1:], i > 0
		}
	}
	return "", "", false
}

// Formats a port number as an image config exposed-ports key.
func portKey(port int) string {
	return fmt.Sprintf("%d/tcp", port)
}
