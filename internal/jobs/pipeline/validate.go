package pipeline

import (
	"fmt"
	"strings"

	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
)

// reservedFields are written by the orchestrator into every payload.
var reservedFields = []string{payload.KeyPipelineID, payload.KeyPipelineType, payload.KeyRoute}

// Validate rejects a definition whose routes have unsatisfiable field
// dependencies: a field required by stage n that neither the initial
// payload nor any earlier stage provides.
func Validate(d *Definition) error {
	if d == nil {
		return fmt.Errorf("nil pipeline definition")
	}
	if d.Type == "" {
		return fmt.Errorf("pipeline definition missing type")
	}
	if d.SubjectKey == "" || !contains(d.InitialFields, d.SubjectKey) {
		return fmt.Errorf("pipeline %s: subject key %q must be an initial field", d.Type, d.SubjectKey)
	}
	routes := d.Routes()
	if len(routes) == 0 {
		return fmt.Errorf("pipeline %s: no routes", d.Type)
	}
	for i, route := range routes {
		if err := validateRoute(d, route); err != nil {
			return fmt.Errorf("pipeline %s route %d: %w", d.Type, i, err)
		}
	}
	return nil
}

func validateRoute(d *Definition, route []StageDescriptor) error {
	if len(route) == 0 {
		return fmt.Errorf("empty route")
	}
	available := map[string]bool{}
	for _, f := range reservedFields {
		available[f] = true
	}
	for _, f := range d.InitialFields {
		available[f] = true
	}
	seen := map[string]bool{}
	for n, st := range route {
		name := strings.TrimSpace(st.Name)
		if name == "" {
			return fmt.Errorf("stage %d has empty name", n)
		}
		if seen[name] {
			return fmt.Errorf("duplicate stage name %q", name)
		}
		seen[name] = true

		var missing []string
		for _, f := range st.Required {
			if !available[f] {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("stage %q requires %v which no earlier stage produces", name, missing)
		}
		for _, f := range st.Outputs {
			available[f] = true
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
