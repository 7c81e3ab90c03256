package scape

import "strings"

// NormalizeName canonicalizes user-supplied scape names: case, separators,
// a "scape" prefix and a "sim" suffix are ignored, and short aliases resolve
// to the built-in track names. Unknown names come back normalized but
// otherwise unchanged.
func NormalizeName(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	normalized = strings.Trim(normalized, "_")
	if normalized == "" {
		return ""
	}
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalName(candidate); ok {
			return canonical
		}
	}
	return normalized
}

func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	stripped := strings.Trim(strings.TrimPrefix(normalized, "scape"), "_")
	if stripped != "" && stripped != normalized {
		candidates = append(candidates, stripped)
	}
	for _, c := range candidates {
		if trimmed := strings.Trim(strings.TrimSuffix(c, "sim"), "_"); trimmed != "" && trimmed != c {
			candidates = append(candidates, trimmed)
		}
	}
	return candidates
}

func canonicalName(alias string) (string, bool) {
	switch strings.ReplaceAll(alias, "_", "") {
	case "flattrack", "flat":
		return "flat_track", true
	case "hilltrack", "hill":
		return "hill_track", true
	default:
		return "", false
	}
}
