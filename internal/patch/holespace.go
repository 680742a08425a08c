package patch

// HoleSpace maps each hole name to a finite, non-empty, ordered set of
// candidate values. Both the hole ordering (insertion order) and each
// domain's value ordering are part of the contract: the enumerator
// iterates in odometer order over exactly this structure.
type HoleSpace struct {
	order   []string
	domains map[string][]any
}

// NewHoleSpace returns an empty hole space. Use Add to populate it in the
// order holes should be enumerated.
func NewHoleSpace() *HoleSpace {
	return &HoleSpace{domains: make(map[string][]any)}
}

// Add appends a hole with its ordered domain. Re-adding an existing name
// replaces its domain but keeps its original position.
func (h *HoleSpace) Add(name string, values ...any) *HoleSpace {
	if _, exists := h.domains[name]; !exists {
		h.order = append(h.order, name)
	}
	dom := make([]any, len(values))
	copy(dom, values)
	h.domains[name] = dom
	return h
}

// Names returns the hole names in their fixed enumeration order.
func (h *HoleSpace) Names() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Domain returns the ordered candidate values for a hole.
func (h *HoleSpace) Domain(name string) ([]any, bool) {
	d, ok := h.domains[name]
	return d, ok
}

// Has reports whether a hole is present in the space.
func (h *HoleSpace) Has(name string) bool {
	_, ok := h.domains[name]
	return ok
}

// Len returns the number of holes in the space.
func (h *HoleSpace) Len() int {
	return len(h.order)
}

// Clone returns a deep-enough copy safe to store independently.
func (h *HoleSpace) Clone() *HoleSpace {
	out := NewHoleSpace()
	for _, name := range h.order {
		out.Add(name, h.domains[name]...)
	}
	return out
}
