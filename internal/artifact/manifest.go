// Package artifact implements the concrete Artifact the engine repairs:
// a Kubernetes deployment manifest backed by a gopkg.in/yaml.v3 yaml.Node
// tree, so key order, comments, and style survive a load/mutate/save
// round trip. The core package graph only ever sees this type through
// the oracle.Artifact interface; it never imports this package directly.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simjay/celor/internal/executor"
	"github.com/simjay/celor/internal/oracle"
	"github.com/simjay/celor/internal/patch"
)

var _ oracle.Artifact = (*Manifest)(nil)

// Manifest is a single-document Kubernetes manifest, held as a yaml.Node
// tree. It satisfies oracle.Artifact.
type Manifest struct {
	// Path is the file the manifest was loaded from, kept for
	// diagnostics and for the `repair` CLI's default output location.
	Path string
	root *yaml.Node
}

// Load reads and parses a single YAML document from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: reading %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes a single YAML document from data, tagging the resulting
// Manifest with path for diagnostics (path may be empty for in-memory use,
// e.g. in tests).
func Parse(path string, data []byte) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("artifact: parsing %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("artifact: %s: empty document", path)
	}
	return &Manifest{Path: path, root: doc.Content[0]}, nil
}

// Save renders the manifest back to path, preserving key order, comments,
// and style recorded on the node tree.
func (m *Manifest) Save(path string) error {
	data, err := m.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Bytes renders the manifest's current node tree to YAML.
func (m *Manifest) Bytes() ([]byte, error) {
	return yaml.Marshal(m.root)
}

// Clone returns an artifact whose node tree is an independent deep copy,
// safe to mutate without affecting the receiver. Satisfies
// oracle.Artifact.
func (m *Manifest) Clone() oracle.Artifact {
	return &Manifest{Path: m.Path, root: deepCopyNode(m.root)}
}

func deepCopyNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Content = make([]*yaml.Node, len(n.Content))
	for i, c := range n.Content {
		cp.Content[i] = deepCopyNode(c)
	}
	return &cp
}

// Apply executes p's operations in order against a clone of the receiver,
// dispatching each opcode through the registered executor, and returns
// the resulting artifact. The receiver itself is never mutated. Satisfies
// oracle.Artifact.
func (m *Manifest) Apply(p patch.Patch) (oracle.Artifact, error) {
	out := &Manifest{Path: m.Path, root: deepCopyNode(m.root)}
	for _, op := range p.Ops {
		if err := executor.Apply(out.root, op); err != nil {
			return nil, fmt.Errorf("artifact: applying %s: %w", op.Op, err)
		}
	}
	return out, nil
}

// Root exposes the underlying node tree for oracles that need structural
// access (e.g. gjson-based lookups over the JSON projection). Oracles
// must treat it as read-only.
func (m *Manifest) Root() *yaml.Node {
	return m.root
}

// JSON renders the manifest's node tree as JSON, for oracles that query
// it with github.com/tidwall/gjson rather than walking yaml.Node
// directly.
func (m *Manifest) JSON() ([]byte, error) {
	var v any
	if err := m.root.Decode(&v); err != nil {
		return nil, fmt.Errorf("artifact: decoding for JSON projection: %w", err)
	}
	return json.Marshal(v)
}
