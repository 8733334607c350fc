package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default command templates for Python package resolution and installation.
//
// The resolve template runs in the resolver container and must write one
// installable artifact per manifest entry into {artifacts}. The install
// template runs in the assembly container and must not touch the network:
// it installs from {artifacts} only, guaranteeing that the assembly stage
// consumes the resolution stage's output verbatim.
const (
	defaultResolveCommand = "pip wheel --no-cache-dir --wheel-dir {artifacts} --requirement {manifest}"
	defaultInstallCommand = "pip install --no-cache-dir --no-index --find-links {artifacts} --requirement {manifest}"
)

// Default command template for system package installation on Debian bases.
const defaultSystemCommand = "apt-get update && apt-get install -y --no-install-recommends {packages} && rm -rf /var/lib/apt/lists/*"

// Describes one runtime image variant to bake.
//
// A plan is the unit of work for the pipeline: one plan produces one image.
// Variants (web, worker, gpu) are independent plan files by design; there is
// no inheritance between them.
type Plan struct {
	Name        string            `yaml:"name"`        // Variant name, used for container IDs and logs.
	Base        string            `yaml:"base"`        // Base runtime image reference.
	Builder     string            `yaml:"builder"`     // Resolution-stage image reference. Defaults to Base.
	Packages    Packages          `yaml:"packages"`    // Language package resolution and installation.
	System      System            `yaml:"system"`      // System shared-library packages.
	Tool        *Tool             `yaml:"tool"`        // Optional bundled third-party binary tool.
	Identity    Identity          `yaml:"identity"`    // Non-root execution identity.
	Workdir     string            `yaml:"workdir"`     // Working directory for the launched process.
	Copy        []string          `yaml:"copy"`        // Host copy steps, "src dest" per entry.
	Env         map[string]string `yaml:"env"`         // Environment variables baked into the image.
	Expose      int               `yaml:"expose"`      // Inbound TCP port, 0 for none (workers).
	Owned       []string          `yaml:"owned"`       // Directories chowned to the identity before export.
	Healthcheck *Healthcheck      `yaml:"healthcheck"` // Periodic liveness probe.
	Entrypoint  []string          `yaml:"entrypoint"`  // Default launched process, runnable with no arguments.
}

// Controls the dependency resolution and installation commands.
//
// Manifest is the path (relative to the build root) of the package manifest:
// an ordered list of name and version-constraint pairs. When Manifest is
// empty the resolution stage is skipped entirely.
type Packages struct {
	Manifest string `yaml:"manifest"` // Package manifest path, relative to the build root.
	Resolve  string `yaml:"resolve"`  // Resolver command template ({manifest}, {artifacts}).
	Install  string `yaml:"install"`  // Installer command template ({manifest}, {artifacts}).
}

// Controls system package installation in the assembly stage.
type System struct {
	Packages []string `yaml:"packages"` // Package names, installed in one transaction.
	Install  string   `yaml:"install"`  // Install command template ({packages}).
}

// Describes a versioned third-party binary tool bundled into the image.
//
// The archive at URL is unpacked under "<home>-<version>" and exposed via
// the stable symbolic link at Link, so callers never see the versioned path.
type Tool struct {
	Name    string `yaml:"name"`    // Tool name (e.g., "blender").
	Version string `yaml:"version"` // Release version, substituted for {version} in URL.
	URL     string `yaml:"url"`     // Download URL template.
	SHA256  string `yaml:"sha256"`  // Hex digest of the archive, verified during download.
	Home    string `yaml:"home"`    // Unversioned install prefix (e.g., /opt/blender).
	Link    string `yaml:"link"`    // Stable symlink path to the tool binary.
	Binary  string `yaml:"binary"`  // Binary path inside the unpacked archive. Defaults to Name.
}

// The restricted user and group the final process runs as.
//
// The identity is created during the finalize stage, after all root-owned
// installation steps complete, and is never elevated afterwards.
type Identity struct {
	User  string `yaml:"user"`
	Group string `yaml:"group"`
	UID   int    `yaml:"uid"`
	GID   int    `yaml:"gid"`
}

// Declares the periodic liveness probe for the running container.
//
// Test is an argv vector executed directly, without a shell. The probe is
// expected to be cheap and side-effect-free (e.g., a bundled binary
// reporting its version), not a full application health check.
type Healthcheck struct {
	Test        []string `yaml:"test"`
	Interval    Duration `yaml:"interval"`
	Timeout     Duration `yaml:"timeout"`
	StartPeriod Duration `yaml:"start_period"`
	Retries     int      `yaml:"retries"`
}

// Loads a plan from a YAML file, applies defaults, and validates it.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanRead, err)
	}
	return Parse(data)
}

// Parses a plan from YAML bytes, applies defaults, and validates it.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanParse, err)
	}

	p.applyDefaults()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Fills in defaulted fields.
func (p *Plan) applyDefaults() {
	if p.Builder == "" {
		p.Builder = p.Base
	}
	if p.Packages.Manifest != "" {
		if p.Packages.Resolve == "" {
			p.Packages.Resolve = defaultResolveCommand
		}
		if p.Packages.Install == "" {
			p.Packages.Install = defaultInstallCommand
		}
	}
	if len(p.System.Packages) > 0 && p.System.Install == "" {
		p.System.Install = defaultSystemCommand
	}
	if p.Tool != nil && p.Tool.Binary == "" {
		p.Tool.Binary = p.Tool.Name
	}
}

// Checks the plan for structural errors.
//
// Validation is total: the first offending field is reported by name. A
// valid plan guarantees the pipeline can execute without re-checking any
// of these conditions.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrPlanInvalid)
	}
	if strings.ContainsAny(p.Name, " /:") {
		return fmt.Errorf("%w: name %q must not contain spaces, slashes, or colons", ErrPlanInvalid, p.Name)
	}
	if p.Base == "" {
		return fmt.Errorf("%w: base image is required", ErrPlanInvalid)
	}

	if err := p.Identity.validate(); err != nil {
		return err
	}
	if err := p.Tool.validate(); err != nil {
		return err
	}
	if err := p.Healthcheck.validate(); err != nil {
		return err
	}

	if p.Workdir == "" || !strings.HasPrefix(p.Workdir, "/") {
		return fmt.Errorf("%w: workdir %q must be an absolute path", ErrPlanInvalid, p.Workdir)
	}

	for key, value := range p.Env {
		if key == "" || value == "" {
			return fmt.Errorf("%w: env %q must have a non-empty name and value", ErrPlanInvalid, key)
		}
	}

	if p.Expose < 0 || p.Expose > 65535 {
		return fmt.Errorf("%w: expose %d is not a valid port", ErrPlanInvalid, p.Expose)
	}

	for _, dir := range p.Owned {
		if !strings.HasPrefix(dir, "/") {
			return fmt.Errorf("%w: owned path %q must be absolute", ErrPlanInvalid, dir)
		}
	}

	if len(p.Entrypoint) == 0 {
		return fmt.Errorf("%w: entrypoint is required", ErrPlanInvalid)
	}

	// A bundled tool without a probe would ship unverifiable: the probe is
	// the only runtime signal that the tool install is intact.
	if p.Tool != nil && p.Healthcheck == nil {
		return fmt.Errorf("%w: a healthcheck is required when a tool is declared", ErrPlanInvalid)
	}

	return nil
}

func (id Identity) validate() error {
	if id.User == "" || id.Group == "" {
		return fmt.Errorf("%w: identity user and group are required", ErrPlanInvalid)
	}
	if id.UID <= 0 || id.GID <= 0 {
		return fmt.Errorf("%w: identity uid and gid must be positive (root is not permitted)", ErrPlanInvalid)
	}
	return nil
}

func (t *Tool) validate() error {
	if t == nil {
		return nil
	}
	if t.Name == "" || t.Version == "" || t.URL == "" {
		return fmt.Errorf("%w: tool name, version, and url are required", ErrPlanInvalid)
	}
	if t.SHA256 == "" {
		return fmt.Errorf("%w: tool sha256 is required", ErrPlanInvalid)
	}
	if !strings.HasPrefix(t.Home, "/") {
		return fmt.Errorf("%w: tool home %q must be an absolute path", ErrPlanInvalid, t.Home)
	}
	if !strings.HasPrefix(t.Link, "/") {
		return fmt.Errorf("%w: tool link %q must be an absolute path", ErrPlanInvalid, t.Link)
	}
	return nil
}

func (h *Healthcheck) validate() error {
	if h == nil {
		return nil
	}
	if len(h.Test) == 0 {
		return fmt.Errorf("%w: healthcheck test command is required", ErrPlanInvalid)
	}
	if h.Interval <= 0 || h.Timeout <= 0 {
		return fmt.Errorf("%w: healthcheck interval and timeout must be positive", ErrPlanInvalid)
	}
	if h.StartPeriod < 0 {
		return fmt.Errorf("%w: healthcheck start_period must not be negative", ErrPlanInvalid)
	}
	if h.Retries < 1 {
		return fmt.Errorf("%w: healthcheck retries must be at least 1", ErrPlanInvalid)
	}
	return nil
}

// Expands the {version} placeholder in the tool URL.
func (t *Tool) ResolvedURL() string {
	return strings.ReplaceAll(t.URL, "{version}", t.Version)
}

// Returns the versioned install directory, "<home>-<version>".
func (t *Tool) VersionedHome() string {
	return fmt.Sprintf("%s-%s", t.Home, t.Version)
}
