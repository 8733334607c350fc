package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Constraint operators recognized in package manifest lines, longest first
// so that "==" is matched before "=" would be (and ">=" before ">").
var constraintOperators = []string{"===", "==", ">=", "<=", "~=", "!=", ">", "<"}

// One entry of a package manifest: a name and an optional version constraint.
//
// Entries keep their original order and line number so resolution failures
// can point back at the manifest.
type Requirement struct {
	Name       string // Package name as written.
	Constraint string // Version constraint (e.g., "==2.31.0"), empty for unpinned.
	Line       int    // 1-based line number in the manifest.
}

// Parses a package manifest in requirements format.
//
// Each non-empty, non-comment line declares one package with an optional
// version constraint. Inline comments (" #") and environment markers (";")
// are stripped. The returned slice preserves declaration order.
func ParseRequirements(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		req, err := parseRequirementLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestRead, err)
	}

	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrManifestEmpty)
	}

	return reqs, nil
}

// Parses a single manifest line into a requirement.
func parseRequirementLine(line string, lineNo int) (Requirement, error) {
	name := line
	constraint := ""

	for i := 0; i < len(line); i++ {
		if op := operatorAt(line, i); op != "" {
			name = strings.TrimSpace(line[:i])
			constraint = strings.TrimSpace(line[i:])
			break
		}
	}

	// Extras ("name[extra1,extra2]") attach to the name, not the constraint.
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}

	if name == "" {
		return Requirement{}, fmt.Errorf("%w: line %d: missing package name", ErrManifestInvalid, lineNo)
	}
	if !validPackageName(name) {
		return Requirement{}, fmt.Errorf("%w: line %d: invalid package name %q", ErrManifestInvalid, lineNo, name)
	}

	return Requirement{Name: name, Constraint: constraint, Line: lineNo}, nil
}

// Returns the constraint operator starting at position i, or "".
func operatorAt(line string, i int) string {
	for _, op := range constraintOperators {
		if strings.HasPrefix(line[i:], op) {
			return op
		}
	}
	return ""
}

// Reports whether s is a plausible package name.
//
// Names are ASCII letters, digits, dots, hyphens, and underscores, starting
// and ending with a letter or digit.
func validPackageName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '_':
			if i == 0 || i == len(s)-1 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}

// Normalizes a package name for comparison: lowercase, with runs of dots,
// hyphens, and underscores collapsed to a single hyphen.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	prevSep := false
	for _, r := range strings.ToLower(name) {
		if r == '.' || r == '-' || r == '_' {
			if !prevSep {
				b.WriteByte('-')
			}
			prevSep = true
			continue
		}
		prevSep = false
		b.WriteRune(r)
	}

	return b.String()
}

// Returns the manifest entries with no corresponding artifact file.
//
// Artifact filenames encode the package name up to the first hyphen-version
// boundary (wheels and sdists spell the name with underscores or hyphens
// interchangeably). An empty result means every entry is satisfied; any
// other result must abort the build, with no partial reuse of the cache.
func MissingArtifacts(reqs []Requirement, files []string) []Requirement {
	have := make(map[string]bool, len(files))
	for _, f := range files {
		if name, ok := artifactName(f); ok {
			have[name] = true
		}
	}

	var missing []Requirement
	for _, req := range reqs {
		if !have[NormalizeName(req.Name)] {
			missing = append(missing, req)
		}
	}
	return missing
}

// Extracts the normalized package name from an artifact filename.
//
// Wheel and sdist filenames put the version after the last name segment:
// "requests-2.31.0-py3-none-any.whl" or "pyyaml-6.0.1.tar.gz". The name is
// everything before the first segment that starts with a digit.
func artifactName(filename string) (string, bool) {
	base := filename
	if i := strings.IndexByte(base, '/'); i >= 0 {
		base = base[strings.LastIndexByte(base, '/')+1:]
	}

	// Wheels use underscores where the name had hyphens; normalization
	// collapses both, so splitting on either separator is safe.
	parts := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_'
	})

	var nameParts []string
	for _, part := range parts {
		if len(part) > 0 && part[0] >= '0' && part[0] <= '9' {
			break
		}
		nameParts = append(nameParts, part)
	}

	if len(nameParts) == 0 {
		return "", false
	}
	return NormalizeName(strings.Join(nameParts, "-")), true
}
