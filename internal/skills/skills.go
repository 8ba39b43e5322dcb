// Package skills holds the skill relatedness graph used by scoring.
//
// The graph is an adjacency map: each key skill lists the skills considered
// related to it. It can be extended from a YAML file at startup; the loaded
// graph is validated once and then treated as read-only, so lookups during
// scoring never fail.
package skills

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Graph maps a skill to the skills related to it.
type Graph map[string][]string

// Related returns the skills related to skill, or nil when the skill has no
// entry in the graph.
func (g Graph) Related(skill string) []string {
	return g[skill]
}

// IsRelated reports whether other is listed as related to skill.
func (g Graph) IsRelated(skill, other string) bool {
	for _, s := range g[skill] {
		if s == other {
			return true
		}
	}
	return false
}

// Validate checks the graph for entries that would corrupt scoring:
// empty skill names, empty relation lists, self-relations and duplicates.
func (g Graph) Validate() error {
	for skill, related := range g {
		if skill == "" {
			return fmt.Errorf("skill graph: empty skill name")
		}
		if len(related) == 0 {
			return fmt.Errorf("skill graph: %q has no related skills", skill)
		}
		seen := make(map[string]bool, len(related))
		for _, r := range related {
			if r == "" {
				return fmt.Errorf("skill graph: %q lists an empty related skill", skill)
			}
			if r == skill {
				return fmt.Errorf("skill graph: %q lists itself as related", skill)
			}
			if seen[r] {
				return fmt.Errorf("skill graph: %q lists %q twice", skill, r)
			}
			seen[r] = true
		}
	}
	return nil
}

// Default returns the built-in relatedness graph for the hospitality and
// services verticals the platform launched with.
func Default() Graph {
	return Graph{
		"Cook":             {"Kitchen Assistant", "Chef", "Pastry Chef", "Pizza Chef"},
		"Waiter":           {"Customer Service", "Barista", "Sommelier", "Receptionist"},
		"Cleaning":         {"Cleaning Assistant", "Janitor", "Caretaker"},
		"Logistics":        {"Stock Clerk", "Checker", "Forklift Operator"},
		"Customer Service": {"Salesperson", "Receptionist", "Telemarketing", "Waiter"},
		"Security":         {"Doorman", "Watchman", "Access Controller"},
	}
}

// LoadFile reads a YAML relatedness graph and merges it over the default
// graph (file entries replace default entries for the same skill). The
// merged graph is validated before being returned.
//
// File format:
//
//	Cook:
//	  - Kitchen Assistant
//	  - Chef
func LoadFile(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill graph: %w", err)
	}

	var loaded Graph
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse skill graph %s: %w", path, err)
	}

	merged := Default()
	for skill, related := range loaded {
		merged[skill] = related
	}

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return merged, nil
}
