package dispatch

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseAssignees extracts assignee identifiers from the task's stored user
// list. The well-formed encoding is a JSON integer array ("[7,12]"); legacy
// rows carry loosely delimited numeric text, for which every integer-looking
// token is extracted instead. An empty or unusable value yields nil.
func ParseAssignees(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err == nil {
		return dedupe(ids)
	}

	// Fallback: pull out every run of digits.
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r < '0' || r > '9'
	})
	ids = ids[:0]
	for _, tok := range tokens {
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return dedupe(ids)
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
