package deployment

import (
	"maps"
	"regexp"
	"slices"
)

// =============================================================================
// Variable Substitution Functions
// =============================================================================

// varPlaceholderRegex matches ${VAR} and ${VAR:-default} patterns.
// Groups:
//   - Group 1: Variable name (required)
//   - Group 2: ":-" marker (present when a default is given, even an empty one)
//   - Group 3: Default value
var varPlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// SubstituteVariables replaces ${VAR} and ${VAR:-default} placeholders with values
// from the variables map.
//
// Behavior:
//   - ${VAR} - replaced with variables["VAR"] if exists, otherwise kept as-is
//   - ${VAR:-default} - replaced with variables["VAR"] if exists, otherwise "default"
//   - Unmatched text is left unchanged
//
// Examples:
//
//	SubstituteVariables("${deployer}", map[string]string{"deployer": "0xf39F..."})
//	// Returns: "0xf39F..."
//
//	SubstituteVariables("${label:-Initial Setup}", map[string]string{})
//	// Returns: "Initial Setup"
//
//	SubstituteVariables("${MISSING}", map[string]string{})
//	// Returns: "${MISSING}"
func SubstituteVariables(value string, variables map[string]string) string {
	return varPlaceholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		submatch := varPlaceholderRegex.FindStringSubmatch(match)
		if val, ok := variables[submatch[1]]; ok {
			return val
		}
		if submatch[2] != "" {
			return submatch[3]
		}
		return match
	})
}

// MissingVariables returns the names of placeholders in value that have
// neither a variable nor a default, in order of first appearance.
func MissingVariables(value string, variables map[string]string) []string {
	var missing []string
	for _, submatch := range varPlaceholderRegex.FindAllStringSubmatch(value, -1) {
		name := submatch[1]
		if _, ok := variables[name]; ok || submatch[2] != "" {
			continue
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// MergeVariables combines variable layers; later layers override earlier ones.
func MergeVariables(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		maps.Copy(merged, layer)
	}
	return merged
}
