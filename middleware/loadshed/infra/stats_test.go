package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipment-loans/middleware/loadshed/domain"
)

func TestMemoryStatsStore_CountsByRouteAndOutcome(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a@uni.edu", Outcome: domain.OutcomeQueued, Method: "POST", Path: "/api/loans"}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a@uni.edu", Outcome: domain.OutcomeRejected, Method: "POST", Path: "/api/loans"}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "b@uni.edu", Method: "GET", Path: "/api/loans/available"}))

	total, err := s.TotalRequests(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	routes := s.ByRoute()
	assert.EqualValues(t, 1, routes["POST /api/loans"][domain.OutcomeQueued])
	assert.EqualValues(t, 1, routes["POST /api/loans"][domain.OutcomeRejected])
	assert.EqualValues(t, 1, routes["GET /api/loans/available"][domain.OutcomeOK])
	assert.EqualValues(t, 2, len(s.ByKey()["a@uni.edu"]))
}

func TestRedisStatsStore_RecordsTotalAndBuckets(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStatsStore(rdb, WithStatsPrefix("test:stats:"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a@uni.edu", Outcome: domain.OutcomeOK, Method: "GET", Path: "/api/loans/available", At: at}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a@uni.edu", Outcome: domain.OutcomeThrottled, Method: "POST", Path: "/api/loans", At: at}))

	total, err := s.TotalRequests(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, time.Duration(0), mr.TTL(domain.KeyTotalRequests), "total never expires")

	assert.Equal(t, "1", mr.HGet("test:stats:minute:202603011230", "throttled"))
	assert.Equal(t, time.Hour, mr.TTL("test:stats:minute:202603011230"))
	assert.Equal(t, "1", mr.HGet("test:stats:key:a@uni.edu", "ok"))

	routes, err := s.ByRoute(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, routes["POST /api/loans:throttled"])
}

func TestRedisStatsStore_TotalMissingIsZero(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	total, err := NewRedisStatsStore(rdb).TotalRequests(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}
