package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts either a Go duration string ("5s", "1m30s") or a
// bare number of seconds in YAML.
type Duration time.Duration

func (duration Duration) Std() time.Duration {
	return time.Duration(duration)
}

func (duration Duration) String() string {
	return time.Duration(duration).String()
}

func (duration *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch typed := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(typed)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", typed, err)
		}
		*duration = Duration(parsed)
	case int:
		*duration = Duration(time.Duration(typed) * time.Second)
	case float64:
		*duration = Duration(time.Duration(typed * float64(time.Second)))
	default:
		return fmt.Errorf("invalid duration value %v (%T)", raw, raw)
	}
	return nil
}

func (duration Duration) MarshalYAML() (any, error) {
	return time.Duration(duration).String(), nil
}
