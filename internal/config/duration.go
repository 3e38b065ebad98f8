package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can express delays either as
// Go duration strings ("500ms", "1m30s") or as plain numeric seconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML decodes a scalar node into a Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
		return nil
	case int:
		d.Duration = time.Duration(v) * time.Second
		return nil
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
		return nil
	default:
		return fmt.Errorf("invalid duration: expected string or number, got %T", raw)
	}
}

// MarshalYAML emits the duration in Go string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}
