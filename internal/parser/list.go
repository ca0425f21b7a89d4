package parser

import (
	"strconv"
	"strings"

	"github.com/laraflow/laraflow/internal/model"
)

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseOffsets parses comma-separated positive hour offsets such as "1,24".
// Duplicates are dropped, order is kept.
func ParseOffsets(input string) ([]int, error) {
	parts := SplitList(input)
	out := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(p), "h"))
		if err != nil || n <= 0 {
			return nil, NewOffsetError(input)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

// ParseEntityTypes parses a comma-separated list of entity types. Known
// names are normalised; unknown names are kept so the sweeper can report
// them as skipped.
func ParseEntityTypes(input string) []model.EntityType {
	parts := SplitList(input)
	out := make([]model.EntityType, 0, len(parts))
	for _, p := range parts {
		if e, err := model.ParseEntityType(p); err == nil {
			out = append(out, e)
			continue
		}
		out = append(out, model.EntityType(p))
	}
	return out
}
