package dag

import (
	"fmt"

	"github.com/vk/burstmission/internal/mission"
)

// Build validates a mission and turns it into a dependency graph. It is the
// only way the executor obtains a graph, so every structural defect (empty
// step list, duplicate id, dangling reference, cycle) surfaces here as a
// MissionValidation error before any step runs.
func Build(m *mission.Mission) (*Graph, error) {
	if err := mission.Validate(m); err != nil {
		return nil, err
	}

	g := New()
	for i := range m.Steps {
		g.AddNode(m.Steps[i].ID)
	}
	for i := range m.Steps {
		s := &m.Steps[i]
		for _, dep := range s.DependsOn {
			if err := g.AddEdge(dep, s.ID); err != nil {
				// Validate already rejected dangling and self references.
				return nil, mission.Invalidf("step %q: %v", s.ID, err)
			}
		}
	}

	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("mission %q: %w", m.Name, err)
	}
	return g, nil
}
