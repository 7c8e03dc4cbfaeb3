package toolexecutor

import "sort"

// ToolPolicy defines which tools an agent can use
type ToolPolicy struct {
	Allow []string `json:"allow" mapstructure:"allow"` // List of allowed tools (* for all)
	Deny  []string `json:"deny" mapstructure:"deny"`   // List of denied tools (overrides allow)
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		return true
	}

	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	// If no explicit allow, deny by default
	return false
}

// MergePolicies merges multiple policies into one.
// The result is the intersection of the allow lists and the union of the
// deny lists. Nil policies are ignored.
func MergePolicies(policies ...*ToolPolicy) *ToolPolicy {
	valid := make([]*ToolPolicy, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			valid = append(valid, p)
		}
	}

	switch len(valid) {
	case 0:
		return nil
	case 1:
		return valid[0]
	}

	denySet := make(map[string]bool)
	for _, policy := range valid {
		for _, denied := range policy.Deny {
			denySet[denied] = true
		}
	}

	allowSet := make(map[string]bool)
	for _, allowed := range valid[0].Allow {
		allowSet[allowed] = true
	}
	for _, policy := range valid[1:] {
		other := make(map[string]bool)
		for _, allowed := range policy.Allow {
			other[allowed] = true
		}

		next := make(map[string]bool)
		for allowed := range allowSet {
			if other[allowed] || other["*"] {
				next[allowed] = true
			}
		}
		if allowSet["*"] {
			for allowed := range other {
				next[allowed] = true
			}
		}
		allowSet = next
	}

	merged := &ToolPolicy{Allow: setToSorted(allowSet), Deny: setToSorted(denySet)}
	return merged
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
