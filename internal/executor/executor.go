// Package executor maps the patch model's opcodes onto mutations of a
// Kubernetes deployment manifest's yaml.Node tree. Opcodes are parsed
// into a domain-specific enumeration here, at the boundary; the core
// engine treats the operation list as opaque. The core
// package graph (internal/patch, internal/enumerate, internal/synth, ...)
// never imports this package; only internal/artifact does, at the point
// where a patch.Patch is actually applied to a concrete manifest.
package executor

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/simjay/celor/internal/patch"
)

// Opcode is the closed set of domain operations a template may name.
// Unrecognised opcodes are a domain-executor rejection, handled by the
// synthesizer per candidate, never terminally.
type Opcode string

const (
	// OpEnsureReplicas sets spec.replicas. Args: replicas (int).
	OpEnsureReplicas Opcode = "EnsureReplicas"
	// OpEnsureLabel sets metadata.labels[key] = value. Args: key, value.
	OpEnsureLabel Opcode = "EnsureLabel"
	// OpEnsureAnnotation sets metadata.annotations[key] = value. Args:
	// key, value.
	OpEnsureAnnotation Opcode = "EnsureAnnotation"
	// OpEnsureResourceRequest sets a named container's
	// resources.requests[resource]. Args: container, resource, value.
	OpEnsureResourceRequest Opcode = "EnsureResourceRequest"
	// OpEnsureResourceLimit sets a named container's
	// resources.limits[resource]. Args: container, resource, value.
	OpEnsureResourceLimit Opcode = "EnsureResourceLimit"
	// OpEnsureSecurityField sets a named container's
	// securityContext[field]. Args: container, field, value.
	OpEnsureSecurityField Opcode = "EnsureSecurityField"
	// OpEnsurePodSecurityField sets the pod-level
	// spec.securityContext[field] (e.g. runAsNonRoot, hostNetwork lives
	// directly on spec, not securityContext; see OpEnsureSpecField).
	// Args: field, value.
	OpEnsurePodSecurityField Opcode = "EnsurePodSecurityField"
	// OpEnsureSpecField sets a scalar directly on spec (e.g.
	// hostNetwork). Args: field, value.
	OpEnsureSpecField Opcode = "EnsureSpecField"
	// OpEnsureField sets a top-level scalar field (apiVersion, kind,
	// metadata.name via "metadata.name"). Args: path (dot-separated,
	// mapping traversal only), value.
	OpEnsureField Opcode = "EnsureField"
)

// Apply dispatches op against root, the manifest's document root mapping
// node, mutating it in place.
func Apply(root *yaml.Node, op patch.Operation) error {
	root = resolveDocument(root)
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("executor: manifest root is not a mapping")
	}

	switch Opcode(op.Op) {
	case OpEnsureReplicas:
		n, err := argInt(op, "replicas")
		if err != nil {
			return err
		}
		spec, err := ensureMapping(root, "spec")
		if err != nil {
			return err
		}
		setScalar(spec, "replicas", strconv.Itoa(n), "!!int")
		return nil

	case OpEnsureLabel:
		key, value, err := argPair(op, "key", "value")
		if err != nil {
			return err
		}
		meta, err := ensureMapping(root, "metadata")
		if err != nil {
			return err
		}
		labels, err := ensureMapping(meta, "labels")
		if err != nil {
			return err
		}
		setScalar(labels, key, fmt.Sprint(value), "")
		return nil

	case OpEnsureAnnotation:
		key, value, err := argPair(op, "key", "value")
		if err != nil {
			return err
		}
		meta, err := ensureMapping(root, "metadata")
		if err != nil {
			return err
		}
		ann, err := ensureMapping(meta, "annotations")
		if err != nil {
			return err
		}
		setScalar(ann, key, fmt.Sprint(value), "")
		return nil

	case OpEnsureResourceRequest, OpEnsureResourceLimit:
		container, resource, value, err := containerResourceArgs(op)
		if err != nil {
			return err
		}
		c, err := findContainer(root, container)
		if err != nil {
			return err
		}
		resources, err := ensureMapping(c, "resources")
		if err != nil {
			return err
		}
		section := "requests"
		if Opcode(op.Op) == OpEnsureResourceLimit {
			section = "limits"
		}
		bucket, err := ensureMapping(resources, section)
		if err != nil {
			return err
		}
		setScalar(bucket, resource, fmt.Sprint(value), "")
		return nil

	case OpEnsureSecurityField:
		container, err := argString(op, "container")
		if err != nil {
			return err
		}
		field, value, err := argPair(op, "field", "value")
		if err != nil {
			return err
		}
		c, err := findContainer(root, container)
		if err != nil {
			return err
		}
		sc, err := ensureMapping(c, "securityContext")
		if err != nil {
			return err
		}
		setScalar(sc, field, fmt.Sprint(value), boolOrIntTag(value))
		return nil

	case OpEnsurePodSecurityField:
		field, value, err := argPair(op, "field", "value")
		if err != nil {
			return err
		}
		spec, err := ensureMapping(root, "spec")
		if err != nil {
			return err
		}
		sc, err := ensureMapping(spec, "securityContext")
		if err != nil {
			return err
		}
		setScalar(sc, field, fmt.Sprint(value), boolOrIntTag(value))
		return nil

	case OpEnsureSpecField:
		field, value, err := argPair(op, "field", "value")
		if err != nil {
			return err
		}
		spec, err := ensureMapping(root, "spec")
		if err != nil {
			return err
		}
		setScalar(spec, field, fmt.Sprint(value), boolOrIntTag(value))
		return nil

	case OpEnsureField:
		path, err := argString(op, "path")
		if err != nil {
			return err
		}
		value, ok := op.Arg("value")
		if !ok {
			return fmt.Errorf("executor: %s: missing arg %q", op.Op, "value")
		}
		v, err := concreteValue(value)
		if err != nil {
			return err
		}
		return setByPath(root, path, fmt.Sprint(v))

	default:
		return fmt.Errorf("executor: unknown opcode %q", op.Op)
	}
}

// resolveDocument unwraps a top-level DocumentNode, if present, to its
// content mapping.
func resolveDocument(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

func concreteValue(v patch.ArgValue) (any, error) {
	c, ok := v.(patch.Concrete)
	if !ok {
		return nil, fmt.Errorf("executor: expected a concrete argument, got %T (holes must be instantiated before Apply)", v)
	}
	return c.V, nil
}

func argString(op patch.Operation, name string) (string, error) {
	v, ok := op.Arg(name)
	if !ok {
		return "", fmt.Errorf("executor: %s: missing arg %q", op.Op, name)
	}
	c, err := concreteValue(v)
	if err != nil {
		return "", err
	}
	s, ok := c.(string)
	if !ok {
		return "", fmt.Errorf("executor: %s: arg %q must be a string, got %T", op.Op, name, c)
	}
	return s, nil
}

func argInt(op patch.Operation, name string) (int, error) {
	v, ok := op.Arg(name)
	if !ok {
		return 0, fmt.Errorf("executor: %s: missing arg %q", op.Op, name)
	}
	c, err := concreteValue(v)
	if err != nil {
		return 0, err
	}
	switch n := c.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("executor: %s: arg %q must be an integer, got %T", op.Op, name, c)
	}
}

func argPair(op patch.Operation, keyArg, valueArg string) (string, any, error) {
	key, err := argString(op, keyArg)
	if err != nil {
		return "", nil, err
	}
	rawVal, ok := op.Arg(valueArg)
	if !ok {
		return "", nil, fmt.Errorf("executor: %s: missing arg %q", op.Op, valueArg)
	}
	val, err := concreteValue(rawVal)
	if err != nil {
		return "", nil, err
	}
	return key, val, nil
}

func containerResourceArgs(op patch.Operation) (container, resource string, value any, err error) {
	container, err = argString(op, "container")
	if err != nil {
		return "", "", nil, err
	}
	resource, value, err = argPair(op, "resource", "value")
	return container, resource, value, err
}

func boolOrIntTag(v any) string {
	switch v.(type) {
	case bool:
		return "!!bool"
	case int, int64:
		return "!!int"
	default:
		return ""
	}
}

// ensureMapping returns the mapping node at root.<key>, creating it (and
// the key) as an empty mapping if absent. root must already be a mapping.
func ensureMapping(root *yaml.Node, key string) (*yaml.Node, error) {
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("executor: expected mapping while resolving %q", key)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			v := root.Content[i+1]
			if v.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("executor: %q is not a mapping", key)
			}
			return v, nil
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	valNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	root.Content = append(root.Content, keyNode, valNode)
	return valNode, nil
}

// setScalar sets mapping[key] = value, creating the key if absent and
// overwriting in place (preserving position) if present. tag may be
// empty to let the YAML emitter infer it from the string form.
func setScalar(mapping *yaml.Node, key, value, tag string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			v := mapping.Content[i+1]
			v.Kind = yaml.ScalarNode
			v.Tag = tag
			v.Value = value
			v.Content = nil
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	valNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	mapping.Content = append(mapping.Content, keyNode, valNode)
}

// findContainer locates spec.template.spec.containers[name] (the
// Deployment pod-template shape) and falls back to spec.containers[name]
// for a bare Pod manifest.
func findContainer(root *yaml.Node, name string) (*yaml.Node, error) {
	spec, err := ensureMapping(root, "spec")
	if err != nil {
		return nil, err
	}
	podSpec := spec
	if tmpl, ok := lookupMapping(spec, "template"); ok {
		if ts, ok := lookupMapping(tmpl, "spec"); ok {
			podSpec = ts
		}
	}
	containers, ok := lookupSequence(podSpec, "containers")
	if !ok {
		return nil, fmt.Errorf("executor: no spec.containers (or spec.template.spec.containers) found")
	}
	for _, c := range containers.Content {
		if c.Kind != yaml.MappingNode {
			continue
		}
		if n, ok := lookupScalar(c, "name"); ok && n == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("executor: no container named %q", name)
}

func lookupMapping(m *yaml.Node, key string) (*yaml.Node, bool) {
	if m.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key && m.Content[i+1].Kind == yaml.MappingNode {
			return m.Content[i+1], true
		}
	}
	return nil, false
}

func lookupSequence(m *yaml.Node, key string) (*yaml.Node, bool) {
	if m.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key && m.Content[i+1].Kind == yaml.SequenceNode {
			return m.Content[i+1], true
		}
	}
	return nil, false
}

func lookupScalar(m *yaml.Node, key string) (string, bool) {
	if m.Kind != yaml.MappingNode {
		return "", false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key && m.Content[i+1].Kind == yaml.ScalarNode {
			return m.Content[i+1].Value, true
		}
	}
	return "", false
}

// setByPath sets a dot-separated path of mapping keys to a scalar value,
// creating intermediate mappings as needed. Arrays are not addressable
// through this generic opcode; use the container-specific opcodes for
// those.
func setByPath(root *yaml.Node, path, value string) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("executor: empty field path")
	}
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, err := ensureMapping(cur, seg)
		if err != nil {
			return err
		}
		cur = next
	}
	setScalar(cur, segs[len(segs)-1], value, "")
	return nil
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	out = append(out, path[start:])
	return out
}
