package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Topology is the on-disk description of a routing graph:
//
//	vertices: [1, 2, 3, 4]
//	edges:
//	  - [1, 2]
//	  - [2, 3]
type Topology struct {
	Vertices []int   `yaml:"vertices"`
	Edges    [][]int `yaml:"edges"`
}

// LoadTopology reads a YAML topology file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading topology file: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology decodes a YAML topology document.
func ParseTopology(data []byte) (*Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("error parsing topology: %w", err)
	}
	return &topo, nil
}

// Apply adds every vertex then every edge to g. It stops at the first edge
// referencing an undeclared vertex.
func (t *Topology) Apply(g *Graph) error {
	for _, v := range t.Vertices {
		g.AddVertex(v)
	}
	for i, e := range t.Edges {
		if len(e) != 2 {
			return fmt.Errorf("edge %d: want 2 endpoints, got %d", i, len(e))
		}
		if err := g.Connect(e[0], e[1]); err != nil {
			return err
		}
	}
	return nil
}
