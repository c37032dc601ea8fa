package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/health"
	"ecocommunity-gamification/pkg/middleware"
	"ecocommunity-gamification/services/achievement"
	"ecocommunity-gamification/services/activity"
	"ecocommunity-gamification/services/notification"
	"ecocommunity-gamification/services/reward"
	"ecocommunity-gamification/services/stats"
	"ecocommunity-gamification/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

const testUser int64 = 42

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t,
		&reward.User{},
		&stats.Snapshot{},
		&activity.Entry{},
		&achievement.Unlock{},
		&notification.Notification{},
	)
	testutil.CreateSourceTables(t, db)
	require.NoError(t, db.Create(&reward.User{ID: testUser, CreatedAt: time.Now()}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	catalog, err := achievement.DefaultCatalog()
	require.NoError(t, err)

	act := activity.NewService(activity.ServiceParams{DB: db, Node: node})
	st := stats.NewService(stats.ServiceParams{DB: db})
	rw := reward.NewService(reward.ServiceParams{DB: db, Ledger: act})
	notifications := notification.NewService(notification.ServiceParams{DB: db, Node: node})
	achievements := achievement.NewService(achievement.ServiceParams{
		DB:         db,
		Node:       node,
		Catalog:    catalog,
		Stats:      st,
		Reward:     rw,
		Activity:   act,
		Cache:      achievement.NewMemoryCache(time.Minute),
		Dispatcher: notifications,
	})

	h := NewHandler(HandlerParams{
		Stats:         st,
		Achievements:  achievements,
		Activity:      act,
		Reward:        rw,
		Notifications: notifications,
	})
	r := NewRouter(RouterParams{
		Config:  &config.Config{},
		Health:  health.ProvideHealth(health.HealthParams{DB: db}),
		Handler: h,
	})
	return r, db
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(middleware.HeaderUserID, strconv.FormatInt(testUser, 10))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "no error object in %v", body)
	return e["code"].(string)
}

func TestRequiresUser(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, header := range []string{"", "abc", "-1"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
		if header != "" {
			req.Header.Set(middleware.HeaderUserID, header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	code, body := do(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "healthy", body["status"])

	code, body = do(t, r, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["deps"], 1)
}

func TestGetStats(t *testing.T) {
	r, _ := newTestRouter(t)

	code, body := do(t, r, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"])

	values := body["stats"].(map[string]any)
	require.Len(t, values, len(stats.DefaultRegistry().Definitions()))
	require.Equal(t, float64(0), values[stats.ForumReplies])

	level := body["level"].(map[string]any)
	require.Equal(t, float64(1), level["level"])
	require.Len(t, body["categories"], 4)
}

func TestTrackAwardsAndNotifies(t *testing.T) {
	r, db := newTestRouter(t)
	testutil.AddForumReplies(t, db, testUser, 1)

	code, body := do(t, r, http.MethodGet, "/v1/achievements/progress", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["achievements"], 38)

	code, body = do(t, r, http.MethodPost, "/v1/actions/forum_replies", map[string]any{"discussion_id": 1})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), body["value"])
	require.Equal(t, float64(50), body["total_exp"])
	awarded := body["newly_earned"].([]any)
	require.Len(t, awarded, 1)
	first := awarded[0].(map[string]any)
	require.Equal(t, float64(16), first["achievement"].(map[string]any)["id"])

	code, body = do(t, r, http.MethodGet, "/v1/achievements/earned", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["achievements"], 1)

	code, body = do(t, r, http.MethodGet, "/v1/achievements", nil)
	require.Equal(t, http.StatusOK, code)
	earnedCount := 0
	for _, item := range body["achievements"].([]any) {
		if item.(map[string]any)["earned"] == true {
			earnedCount++
		}
	}
	require.Equal(t, 1, earnedCount)

	code, body = do(t, r, http.MethodGet, "/v1/notifications", nil)
	require.Equal(t, http.StatusOK, code)
	notes := body["notifications"].([]any)
	require.Len(t, notes, 1)
	require.Equal(t, "Achievement Unlocked!", notes[0].(map[string]any)["title"])

	code, body = do(t, r, http.MethodGet, "/v1/activities?limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["activities"], 2)

	code, body = do(t, r, http.MethodPost, "/v1/achievements/check", nil)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, body["newly_earned"])
	require.Len(t, body["achievements"], 37)
}

func TestTrackUnknownStat(t *testing.T) {
	r, _ := newTestRouter(t)

	code, body := do(t, r, http.MethodPost, "/v1/actions/karma", nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, "validation_failed", errorCode(t, body))
}

func TestAppendActivity(t *testing.T) {
	r, _ := newTestRouter(t)

	code, body := do(t, r, http.MethodPost, "/v1/activities", map[string]any{
		"activity_type": activity.TypeChallengeCompleted,
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "bad_request", errorCode(t, body))

	code, body = do(t, r, http.MethodPost, "/v1/activities", map[string]any{})
	require.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, http.MethodPost, "/v1/activities", map[string]any{
		"activity_type": "event_joined",
		"activity_data": map[string]any{"event_id": 9},
	})
	require.Equal(t, http.StatusCreated, code)
	entry := body["activity"].(map[string]any)
	require.Equal(t, "event_joined", entry["activity_type"])
	require.Equal(t, map[string]any{"event_id": float64(9)}, entry["activity_data"])
}

func TestGrantExp(t *testing.T) {
	r, _ := newTestRouter(t)

	code, body := do(t, r, http.MethodPost, "/v1/rewards", map[string]any{
		"activity_type": activity.TypeLearningCompleted,
		"amount":        120,
		"activity_data": map[string]any{"material_id": 3},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(120), body["exp_gained"])
	require.Equal(t, float64(2), body["level"])

	code, _ = do(t, r, http.MethodPost, "/v1/rewards", map[string]any{
		"activity_type": activity.TypeAchievementEarned,
		"amount":        10,
	})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestUserAchievements(t *testing.T) {
	r, _ := newTestRouter(t)

	code, body := do(t, r, http.MethodGet, "/v1/users/abc/achievements", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "bad_request", errorCode(t, body))

	code, body = do(t, r, http.MethodGet, "/v1/users/42/achievements", nil)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, body["achievements"])
	require.Len(t, body["progress"], 38)
}

func TestRefreshStats(t *testing.T) {
	r, db := newTestRouter(t)
	testutil.AddForumReplies(t, db, testUser, 2)

	code, body := do(t, r, http.MethodPost, "/v1/stats/refresh", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(2), body["stats"].(map[string]any)[stats.ForumReplies])
	require.Len(t, body["newly_earned"], 1)
}
