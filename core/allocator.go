package core

import "langaccessor/models"

// AllocateRuleID returns the id already assigned to domain, or the smallest positive
// integer not used by any value of ids. ids is not modified; the caller writes the
// result back before allocating the next domain of the same pass.
func AllocateRuleID(domain string, ids models.RuleIDMap) int {
	if id, ok := ids[domain]; ok && id > 0 {
		return id
	}
	used := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		used[id] = struct{}{}
	}
	id := 1
	for {
		if _, taken := used[id]; !taken {
			return id
		}
		id++
	}
}
