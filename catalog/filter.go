// Package catalog filters and orders acts for listing. Every function here
// returns a new slice and leaves its input untouched.
package catalog

import (
	"strings"

	"legis/types"
)

// Criteria selects which acts are listed.
type Criteria struct {
	Query    string
	Types    []types.ItemType
	Keywords []string
}

// Filter keeps the acts that match the query text, one of the selected types
// and at least one of the selected keywords. An empty query, type set or
// keyword set does not restrict the result.
func Filter(acts []types.Act, c Criteria) []types.Act {
	query := strings.ToLower(c.Query)

	typeSet := make(map[types.ItemType]struct{}, len(c.Types))
	for _, t := range c.Types {
		typeSet[t] = struct{}{}
	}
	keywordSet := make(map[string]struct{}, len(c.Keywords))
	for _, k := range c.Keywords {
		keywordSet[k] = struct{}{}
	}

	result := make([]types.Act, 0, len(acts))
	for _, act := range acts {
		if !matchesQuery(act, query) {
			continue
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[act.ItemType]; !ok {
				continue
			}
		}
		if len(keywordSet) > 0 && !sharesKeyword(act, keywordSet) {
			continue
		}
		result = append(result, act)
	}
	return result
}

func matchesQuery(act types.Act, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(act.Title), query) {
		return true
	}
	if act.Content != nil && strings.Contains(strings.ToLower(*act.Content), query) {
		return true
	}
	for _, k := range act.Keywords {
		if strings.Contains(strings.ToLower(k), query) {
			return true
		}
	}
	return false
}

func sharesKeyword(act types.Act, set map[string]struct{}) bool {
	for _, k := range act.Keywords {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}

// Visible drops acts whose confidence score is known and below threshold,
// unless the caller is an admin.
func Visible(acts []types.Act, threshold float64, isAdmin bool) []types.Act {
	result := make([]types.Act, 0, len(acts))
	for _, act := range acts {
		if !isAdmin && IsLowConfidence(act.ConfidenceScore, threshold) {
			continue
		}
		result = append(result, act)
	}
	return result
}

func IsLowConfidence(score *float64, threshold float64) bool {
	return score != nil && *score < threshold
}

// Apply filters and then orders acts.
func Apply(acts []types.Act, c Criteria, o Order) []types.Act {
	return Sort(Filter(acts, c), o)
}
