package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func TestValidStudentIDs(t *testing.T) {
	users := []models.User{
		{ID: "1", Role: models.RoleAdmin},
		{ID: "2", Role: models.RoleTeacher},
		{ID: "3", Role: models.RoleStudent},
		{ID: "4", Role: models.RoleStudent},
		{ID: "5", Role: models.RoleParent, LinkedStudentID: "3"},
	}

	got := ValidStudentIDs([]string{"4", "", "2", "99", "3", " ", "4", "5"}, users)
	assert.Equal(t, []string{"4", "3"}, got)
	assert.Empty(t, ValidStudentIDs(nil, users))
}
