package mission

import "strings"

// Validate checks the structural invariants of a mission: a non-empty
// version, a name, at least one step, unique non-empty step ids, a type on
// every step, and dependencies that only reference steps of the same
// mission. Cycle detection needs the dependency graph and lives in dag.Build.
//
// Validate is pure: the same mission always yields the same outcome.
func Validate(m *Mission) error {
	if m == nil {
		return Invalidf("mission is nil")
	}
	if strings.TrimSpace(m.Version) == "" {
		return Invalidf("mission version is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return Invalidf("mission name must not be empty")
	}
	if len(m.Steps) == 0 {
		return Invalidf("mission %q has no steps", m.Name)
	}
	if err := validateConfig(m.Config); err != nil {
		return err
	}

	ids := make(map[string]struct{}, len(m.Steps))
	for i := range m.Steps {
		s := &m.Steps[i]
		if strings.TrimSpace(s.ID) == "" {
			return Invalidf("step at index %d has an empty id", i)
		}
		if _, dup := ids[s.ID]; dup {
			return Invalidf("duplicate step id %q", s.ID)
		}
		ids[s.ID] = struct{}{}

		if s.Type == "" {
			return Invalidf("step %q has no step_type", s.ID)
		}
		if s.TimeoutSeconds != nil && *s.TimeoutSeconds <= 0 {
			return Invalidf("step %q has non-positive timeout_seconds %d", s.ID, *s.TimeoutSeconds)
		}
	}

	for i := range m.Steps {
		s := &m.Steps[i]
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return CycleError(s.ID, []string{s.ID, s.ID})
			}
			if _, ok := ids[dep]; !ok {
				return Invalidf("step %q depends on unknown step %q", s.ID, dep)
			}
		}
	}

	return nil
}

func validateConfig(c *Config) error {
	if c == nil {
		return nil
	}
	if c.MaxParallelSteps != nil && *c.MaxParallelSteps <= 0 {
		return Invalidf("config max_parallel_steps must be positive, got %d", *c.MaxParallelSteps)
	}
	if c.TimeoutSeconds != nil && *c.TimeoutSeconds <= 0 {
		return Invalidf("config timeout_seconds must be positive, got %d", *c.TimeoutSeconds)
	}
	return nil
}
