package logging

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Components are the names that may carry a level override.
var Components = []string{"cli", "codec", "flush", "manager", "transport"}

// Spec is a base level plus per-component overrides, written as
// "<base-level>[,<component>=<level>]...", for example
// "warn,flush=debug,transport=trace".
type Spec struct {
	BaseLevel  Level
	Components map[string]Level
}

// ParseSpec parses a log spec. An empty string yields DefaultLevel with
// no overrides. Unknown component names are rejected so that a typo does
// not silently leave a component at the base level.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{
		BaseLevel:  DefaultLevel,
		Components: make(map[string]Level),
	}

	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		component, levelStr, isOverride := strings.Cut(part, "=")
		if !isOverride {
			if i != 0 {
				return spec, fmt.Errorf("base level %q must be first in spec", part)
			}
			level, err := ParseLevel(part)
			if err != nil {
				return spec, err
			}
			spec.BaseLevel = level
			continue
		}

		component = strings.TrimSpace(component)
		if component == "" {
			return spec, fmt.Errorf("empty component name in %q", part)
		}
		if !slices.Contains(Components, component) {
			return spec, fmt.Errorf("unknown log component %q (known: %s)", component, strings.Join(Components, ", "))
		}
		level, err := ParseLevel(levelStr)
		if err != nil {
			return spec, fmt.Errorf("invalid level for component %q: %w", component, err)
		}
		spec.Components[component] = level
	}

	return spec, nil
}

// LevelFor returns the level in force for component.
func (s *Spec) LevelFor(component string) Level {
	if level, ok := s.Components[component]; ok {
		return level
	}
	return s.BaseLevel
}

// String returns the spec in parseable form with overrides sorted by
// component name.
func (s *Spec) String() string {
	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := []string{s.BaseLevel.String()}
	for _, name := range names {
		parts = append(parts, name+"="+s.Components[name].String())
	}
	return strings.Join(parts, ",")
}
