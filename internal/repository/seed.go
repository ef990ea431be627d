package repository

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/academic-records-api/internal/models"
)

//go:embed seed/default.yaml
var defaultSeed []byte

// SeedFixtures are the users and courses a fresh store starts with.
type SeedFixtures struct {
	Users   []models.User   `yaml:"users"`
	Courses []models.Course `yaml:"courses"`
}

type seedTarget interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	UpsertUser(ctx context.Context, user models.User) error
	UpsertCourse(ctx context.Context, course models.Course) error
}

// LoadSeed reads fixtures from path, or the built-in fixtures when path is empty.
func LoadSeed(path string) (*SeedFixtures, error) {
	raw := defaultSeed
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file %s: %w", path, err)
		}
		raw = data
	}
	return ParseSeed(raw)
}

// ParseSeed decodes YAML fixtures and checks their roles.
func ParseSeed(raw []byte) (*SeedFixtures, error) {
	var fixtures SeedFixtures
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return nil, fmt.Errorf("decode seed fixtures: %w", err)
	}
	for _, u := range fixtures.Users {
		if u.ID == "" || !u.Role.Valid() {
			return nil, fmt.Errorf("seed user %q: id and a valid role are required", u.Username)
		}
	}
	for _, c := range fixtures.Courses {
		if c.ID == "" {
			return nil, fmt.Errorf("seed course %q: id is required", c.Code)
		}
	}
	return &fixtures, nil
}

// Seed writes fixtures into collections that are still empty. Populated collections are
// left alone so a restart never overwrites edited data.
func Seed(ctx context.Context, store seedTarget, fixtures *SeedFixtures, logger *zap.Logger) error {
	if fixtures == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if len(users) == 0 {
		for _, u := range fixtures.Users {
			if err := store.UpsertUser(ctx, u); err != nil {
				return fmt.Errorf("seed user %s: %w", u.ID, err)
			}
		}
		logger.Info("seeded users", zap.Int("count", len(fixtures.Users)))
	}

	courses, err := store.ListCourses(ctx)
	if err != nil {
		return fmt.Errorf("seed courses: %w", err)
	}
	if len(courses) == 0 {
		for _, c := range fixtures.Courses {
			if err := store.UpsertCourse(ctx, c); err != nil {
				return fmt.Errorf("seed course %s: %w", c.ID, err)
			}
		}
		logger.Info("seeded courses", zap.Int("count", len(fixtures.Courses)))
	}
	return nil
}
