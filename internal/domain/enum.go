package domain

import "strings"

var enumSeparators = strings.NewReplacer(" ", "_", "-", "_")

// normalizeEnum canonicalizes wire values: trimmed, upper case, spaces and
// hyphens folded into underscores.
func normalizeEnum(raw string) string {
	return enumSeparators.Replace(strings.ToUpper(strings.TrimSpace(raw)))
}

// matchEnum resolves raw against known values. Underscores are ignored when
// comparing so "InProgress" and "in progress" both resolve to IN_PROGRESS.
func matchEnum[T ~string](raw string, known []T) (T, bool) {
	normalized := normalizeEnum(raw)
	if normalized == "" {
		return "", false
	}
	compact := strings.ReplaceAll(normalized, "_", "")
	for _, candidate := range known {
		if string(candidate) == normalized || strings.ReplaceAll(string(candidate), "_", "") == compact {
			return candidate, true
		}
	}
	return "", false
}

func isKnown[T ~string](value T, known []T) bool {
	for _, candidate := range known {
		if candidate == value {
			return true
		}
	}
	return false
}
