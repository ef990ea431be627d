package service

import (
	"strings"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// ValidStudentIDs returns the members of a course enrollment list that resolve to an
// existing student account. Empty, unknown and non-student ids are dropped; order is kept
// and duplicates collapse to their first occurrence.
func ValidStudentIDs(enrolled []string, users []models.User) []string {
	students := make(map[string]struct{}, len(users))
	for _, user := range users {
		if user.Role == models.RoleStudent {
			students[user.ID] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(enrolled))
	result := make([]string, 0, len(enrolled))
	for _, raw := range enrolled {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := students[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func studentSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
