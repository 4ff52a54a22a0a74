package config

import (
	"fmt"
	"strings"
)

// parseSweepArgs expands "name=v1,v2" arguments into the Cartesian product
// of parameter sets. The first argument varies slowest.
func parseSweepArgs(args []string) ([]map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}

	sets := []map[string]any{{}}
	seen := make(map[string]bool, len(args))

	for _, arg := range args {
		name, list, found := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)

		if !found || name == "" {
			return nil, fmt.Errorf(
				"sweep must be in the form name=v1,v2, got %q", arg)
		}

		if seen[name] {
			return nil, fmt.Errorf("parameter %s is swept twice", name)
		}
		seen[name] = true

		values := strings.Split(list, ",")

		next := make([]map[string]any, 0, len(sets)*len(values))
		for _, set := range sets {
			for _, value := range values {
				value = strings.TrimSpace(value)
				if value == "" {
					return nil, fmt.Errorf("empty value in sweep %q", arg)
				}

				expanded := make(map[string]any, len(set)+1)
				for k, v := range set {
					expanded[k] = v
				}
				expanded[name] = value

				next = append(next, expanded)
			}
		}

		sets = next
	}

	return sets, nil
}
