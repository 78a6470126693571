package auth

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ExtractGroups handles both flat and nested group claims from JWT tokens.
// Supports:
//   - Flat arrays: ["g1-id", "g2-id"]
//   - Nested objects: [{"id": "g1-id", "type": "team"}] with claimPath="id"
//
// A missing claim is not an error: the user may simply have no groups, or
// the app registration may not emit group claims at all.
func ExtractGroups(claims map[string]interface{}, claimField string, claimPath string) ([]string, error) {
	rawValue, ok := claims[claimField]
	if !ok {
		return []string{}, nil
	}

	// Flat string array first: ["g1-id", "g2-id"]
	if groups, ok := rawValue.([]interface{}); ok {
		result := make([]string, 0, len(groups))
		for _, g := range groups {
			if str, ok := g.(string); ok {
				result = append(result, str)
			}
		}
		if len(result) > 0 || claimPath == "" {
			return result, nil
		}
	}

	if claimPath != "" {
		return extractNestedGroups(rawValue, claimPath)
	}

	return nil, fmt.Errorf("groups claim invalid format (expected []string or []object with path)")
}

// extractNestedGroups uses mapstructure to extract from nested objects.
// Only single-level paths like "id", "name", "value" are supported.
func extractNestedGroups(rawValue interface{}, path string) ([]string, error) {
	if path == "id" || path == "name" || path == "value" {
		var objects []map[string]interface{}
		if err := mapstructure.Decode(rawValue, &objects); err != nil {
			return nil, fmt.Errorf("failed to decode nested groups: %w", err)
		}

		result := make([]string, 0, len(objects))
		for _, obj := range objects {
			if val, ok := obj[path].(string); ok {
				result = append(result, val)
			}
		}
		return result, nil
	}

	return nil, fmt.Errorf("complex nested paths not supported (path: %s)", path)
}

// ExtractClaimString extracts an optional string claim, returning "" when
// the claim is absent or not a string.
func ExtractClaimString(claims map[string]interface{}, claimField string) string {
	value, _ := claims[claimField].(string)
	return value
}
