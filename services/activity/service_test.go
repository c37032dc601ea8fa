package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"ecocommunity-gamification/pkg/errutil"
	"ecocommunity-gamification/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &Entry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node})
}

func TestAppendStoresPayloadWithoutExp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Append(ctx, 7, "forum_replies", map[string]any{"discussion_id": 3})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Equal(t, int64(0), entry.ExpGranted)
	require.JSONEq(t, `{"discussion_id":3}`, string(entry.ActivityData))

	entries, err := svc.List(ctx, 7, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, entry.ID, entries[0].ID)
}

func TestAppendNilPayloadIsEmptyObject(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.Append(context.Background(), 1, "login", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(entry.ActivityData))
}

func TestAppendRejectsMissingType(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.Append(context.Background(), 1, "", nil)
	require.Nil(t, entry)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusBadRequest, be.Status())
}

func TestAppendRejectsInvalidRawJSON(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Append(context.Background(), 1, "login", datatypes.JSON(`{"broken"`))
	require.True(t, errutil.IsStatus(err, errutil.StatusBadRequest))
}

func TestListNewestFirstWithPaging(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	for i := 0; i < 60; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		_, err := svc.Append(ctx, 42, "events_joined", map[string]int{"n": i})
		require.NoError(t, err)
	}
	_, err := svc.Append(ctx, 43, "events_joined", nil)
	require.NoError(t, err)

	page, err := svc.List(ctx, 42, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, DefaultPageSize)
	require.JSONEq(t, `{"n":59}`, string(page[0].ActivityData))

	page, err = svc.List(ctx, 42, 500, 0)
	require.NoError(t, err)
	require.Len(t, page, MaxPageSize)

	page, err = svc.List(ctx, 42, 5, 58)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.JSONEq(t, `{"n":1}`, string(page[0].ActivityData))
	require.JSONEq(t, `{"n":0}`, string(page[1].ActivityData))
}

func TestListEmptyIsNotNil(t *testing.T) {
	svc := newTestService(t)

	entries, err := svc.List(context.Background(), 99, 10, 0)
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestSumGrantedBetween(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	insert := func(at time.Time, userID int64, typ string, exp int64) {
		svc.now = func() time.Time { return at }
		_, err := svc.AppendTx(ctx, nil, Params{UserID: userID, ActivityType: typ, ExpGranted: exp})
		require.NoError(t, err)
	}

	insert(day.Add(-time.Minute), 1, TypeAchievementEarned, 1000)
	insert(day.Add(time.Hour), 1, TypeAchievementEarned, 300)
	insert(day.Add(2*time.Hour), 1, TypeChallengeCompleted, 200)
	insert(day.Add(3*time.Hour), 1, "forum_replies", 999)
	insert(day.Add(4*time.Hour), 2, TypeAchievementEarned, 50)
	insert(day.Add(24*time.Hour), 1, TypeLearningCompleted, 70)

	total, err := svc.SumGrantedBetween(ctx, nil, 1, RewardTypes, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(500), total)

	total, err = svc.SumGrantedBetween(ctx, nil, 3, RewardTypes, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestIsRewardType(t *testing.T) {
	require.True(t, IsRewardType(TypeLearningCompleted))
	require.False(t, IsRewardType("forum_replies"))
	require.False(t, IsRewardType(StatType(TypeLearningCompleted)))
}

func TestAppendRejectsNonPositiveUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Append(ctx, 7, "login", nil)
	require.NoError(t, err)

	_, err = svc.Append(ctx, 0, "login", nil)
	require.True(t, errutil.IsStatus(err, errutil.StatusBadRequest))

	entries, err := svc.List(ctx, 0, 10, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}
