package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type memoryCacheRepo struct {
	values   map[string][]byte
	patterns []string
	getErr   error
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	hit, err := nilSvc.Get(context.Background(), "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, nilSvc.Set(context.Background(), "k", 1, 0))

	svc := NewCacheService(&memoryCacheRepo{values: map[string][]byte{}}, nil, 0, zap.NewNop(), false)
	assert.False(t, svc.Enabled())
}

func TestCacheServiceGetMissAndError(t *testing.T) {
	repo := &memoryCacheRepo{values: map[string][]byte{}}
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)

	var dest models.AttendanceSummary
	hit, err := svc.Get(context.Background(), "missing", &dest)
	assert.NoError(t, err)
	assert.False(t, hit)

	repo.getErr = errors.New("connection refused")
	_, err = svc.Get(context.Background(), "missing", &dest)
	assert.Error(t, err)
}

func TestAttendanceSummaryServedFromCacheUntilMarked(t *testing.T) {
	store := newFakeRecordStore()
	repo := &memoryCacheRepo{values: map[string][]byte{}}
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	svc := NewAttendanceService(store, 75, cache, nil, nil, zap.NewNop())
	ctx := context.Background()
	student := models.Actor{UserID: "3", Role: models.RoleStudent}

	_, err := svc.MarkDay(ctx, teacherActor, "c2", MarkDayRequest{Date: "2026-04-01", Statuses: map[string]models.AttendanceStatus{"3": "present"}})
	require.NoError(t, err)

	first, hit, err := svc.Summary(ctx, student, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 100, first.Percentage)

	_, hit, err = svc.Summary(ctx, student, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = svc.MarkDay(ctx, teacherActor, "c2", MarkDayRequest{Date: "2026-04-02", Statuses: map[string]models.AttendanceStatus{}})
	require.NoError(t, err)
	assert.Contains(t, repo.patterns, "attendance:summary:*")

	second, hit, err := svc.Summary(ctx, student, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 50, second.Percentage)
}
