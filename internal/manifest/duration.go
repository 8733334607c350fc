package manifest

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// A time.Duration that unmarshals from YAML strings like "30s" or "1m30s".
type Duration time.Duration

// Parses a duration from its YAML scalar representation.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid duration %q", ErrPlanInvalid, raw)
	}

	*d = Duration(parsed)
	return nil
}

// Returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
