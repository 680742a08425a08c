package main

import (
	"fmt"
	"path/filepath"
	"strings"
)

func splitCommaList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseKeyValue turns "key=value,key2=value2" into a map.
func parseKeyValue(input string) (map[string]string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range splitCommaList(input) {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

func scriptName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
