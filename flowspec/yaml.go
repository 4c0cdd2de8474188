package flowspec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the on-disk shape of a flow overlay document.
type overlayFile struct {
	Flows []*FlowSpec `yaml:"flows"`
}

// ParseOverlay decodes flow specs from a YAML document. Specs without an
// explicit edge set are treated as sequential chains; a missing join defaults
// to the last node.
func ParseOverlay(data []byte) ([]*FlowSpec, error) {
	var doc overlayFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse flow overlay: %w", err)
	}
	for _, spec := range doc.Flows {
		if len(spec.Nodes) == 0 {
			return nil, fmt.Errorf("flow %s: no nodes", spec.ID)
		}
		if spec.Join == "" {
			spec.Join = spec.Nodes[len(spec.Nodes)-1]
		}
		if len(spec.Edges) == 0 {
			for i := 0; i+1 < len(spec.Nodes); i++ {
				spec.Edges = append(spec.Edges, Edge{From: spec.Nodes[i], To: spec.Nodes[i+1]})
			}
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Flows, nil
}

// LoadOverlay reads a YAML overlay file and registers every flow it defines.
// This is a registry-time operation; calling it after sessions have started
// is unsupported.
func (r *Registry) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read flow overlay: %w", err)
	}
	specs, err := ParseOverlay(data)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
