package constraint

import "github.com/simjay/celor/internal/oracle"

// Extract maps a violation list to a deduplicated constraint list:
// forbid_value evidence becomes ForbiddenValue, forbid_tuple
// evidence (k>=2) becomes a canonicalised ForbiddenTuple, and any evidence
// referencing a hole absent from the current hole space is discarded;
// the extractor never invents constraints beyond what evidence explicitly
// asserts, and a nil holeNames disables the hole-presence filter
// (useful for tests that only care about the mapping rule itself).
func Extract(violations []oracle.Violation, holeNames map[string]bool) []Constraint {
	s := NewSet()
	for _, v := range violations {
		for _, fv := range v.Evidence.ForbidValue {
			if holeNames != nil && !holeNames[fv.Hole] {
				continue
			}
			s.Add(ForbiddenValue{Hole: fv.Hole, Value: fv.Value})
		}
		for _, ft := range v.Evidence.ForbidTuple {
			if len(ft.Holes) < 2 || len(ft.Holes) != len(ft.Values) {
				continue
			}
			if holeNames != nil && !allPresent(ft.Holes, holeNames) {
				continue
			}
			s.Add(NewForbiddenTuple(ft.Holes, ft.Values))
		}
	}
	return s.List()
}

func allPresent(holes []string, present map[string]bool) bool {
	for _, h := range holes {
		if !present[h] {
			return false
		}
	}
	return true
}
