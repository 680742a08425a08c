// Package signature builds the canonical fingerprint used as the repair
// bank's lookup key.
package signature

import (
	"fmt"
	"sort"
	"strings"
)

// Signature is a structured fingerprint of a violation situation: the set
// of failed oracle identifiers, the sorted list of distinct error codes,
// and optional artifact-context key/value pairs. Two signatures are equal
// iff all three fields are equal under value equality.
type Signature struct {
	FailedOracles []string
	ErrorCodes    []string
	Context       map[string]string
}

// New builds a canonical signature: failedOracles is deduplicated and
// sorted (it is a set), errorCodes is deduplicated and sorted (callers
// may pass it in any order). context may be nil.
func New(failedOracles, errorCodes []string, context map[string]string) Signature {
	return Signature{
		FailedOracles: dedupSort(failedOracles),
		ErrorCodes:    dedupSort(errorCodes),
		Context:       context,
	}
}

func dedupSort(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Equal reports whether s and other are the same signature under
// value equality of all three fields.
func (s Signature) Equal(other Signature) bool {
	return s.Key() == other.Key()
}

// Key renders a canonical, order-independent string form of the
// signature, suitable as a map key or persistence key. Two signatures
// equal under Equal always render identical keys.
func (s Signature) Key() string {
	var b strings.Builder
	b.WriteString("oracles=")
	b.WriteString(strings.Join(s.FailedOracles, ","))
	b.WriteString("|codes=")
	b.WriteString(strings.Join(s.ErrorCodes, ","))
	if len(s.Context) > 0 {
		keys := make([]string, 0, len(s.Context))
		for k := range s.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("|context=")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%s=%s", k, s.Context[k])
		}
	}
	return b.String()
}
