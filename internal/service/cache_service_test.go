package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/edu-center-api/internal/models"
)

func TestCacheServiceRoundTrip(t *testing.T) {
	cache := NewCacheService(&memoryCache{}, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()

	var miss models.DebtSummary
	assert.False(t, cache.Get(ctx, debtCacheKey("stu-1"), &miss))

	cache.Set(ctx, debtCacheKey("stu-1"), models.DebtSummary{StudentID: "stu-1", TotalDebt: 5000}, 0)

	var hit models.DebtSummary
	assert.True(t, cache.Get(ctx, debtCacheKey("stu-1"), &hit))
	assert.EqualValues(t, 5000, hit.TotalDebt)

	cache.Invalidate(ctx, debtCacheKey("stu-1"))
	assert.False(t, cache.Get(ctx, debtCacheKey("stu-1"), &hit))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &memoryCache{}
	cache := NewCacheService(repo, nil, time.Minute, nil, false)
	ctx := context.Background()

	cache.Set(ctx, "k", 1, time.Minute)
	assert.Empty(t, repo.values)

	var nilCache *CacheService
	var out int
	assert.False(t, nilCache.Get(ctx, "k", &out))
	nilCache.InvalidatePattern(ctx, "debtors:*")
}
