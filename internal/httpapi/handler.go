package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ecocommunity-gamification/pkg/errutil"
	"ecocommunity-gamification/pkg/middleware"
	"ecocommunity-gamification/services/achievement"
	"ecocommunity-gamification/services/activity"
	"ecocommunity-gamification/services/notification"
	"ecocommunity-gamification/services/reward"
	"ecocommunity-gamification/services/stats"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Handler exposes the gamification services over HTTP. The caller is
// always the user resolved by middleware.User.
type Handler struct {
	stats         *stats.Service
	achievements  *achievement.Service
	activity      *activity.Service
	reward        *reward.Service
	notifications *notification.Service
}

type HandlerParams struct {
	fx.In
	Stats         *stats.Service
	Achievements  *achievement.Service
	Activity      *activity.Service
	Reward        *reward.Service
	Notifications *notification.Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		stats:         p.Stats,
		achievements:  p.Achievements,
		activity:      p.Activity,
		reward:        p.Reward,
		notifications: p.Notifications,
	}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/stats", h.GetStats)
	r.POST("/stats/refresh", h.RefreshStats)

	r.GET("/achievements", h.Overview)
	r.GET("/achievements/earned", h.ListEarned)
	r.GET("/achievements/progress", h.Progress)
	r.POST("/achievements/check", h.Check)
	r.GET("/users/:user_id/achievements", h.UserAchievements)

	r.GET("/activities", h.ListActivities)
	r.POST("/activities", h.AppendActivity)
	r.POST("/rewards", h.GrantExp)
	r.POST("/actions/:stat", h.Track)

	r.GET("/notifications", h.ListNotifications)
}

func userID(c *gin.Context) int64 {
	return middleware.GetUserID(c.Request.Context())
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	snap, err := h.stats.Get(ctx, uid)
	if err != nil {
		_ = c.Error(err)
		return
	}
	exp, err := h.reward.Exp(ctx, uid)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"stats":        snap.Values(),
		"categories":   h.stats.Registry().Categories(),
		"last_updated": snap.LastUpdated,
		"level":        h.reward.Progress(exp),
	})
}

// RefreshStats recomputes the caller's stats and awards anything the new
// values satisfy.
func (h *Handler) RefreshStats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	res, err := h.achievements.Reconcile(ctx, uid)
	if err != nil {
		_ = c.Error(err)
		return
	}
	snap, err := h.stats.Get(ctx, uid)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"stats":        snap.Values(),
		"last_updated": snap.LastUpdated,
		"newly_earned": res.Awarded,
	})
}

func (h *Handler) Overview(c *gin.Context) {
	items, err := h.achievements.Overview(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "achievements": items})
}

func (h *Handler) ListEarned(c *gin.Context) {
	earned, err := h.achievements.ListEarned(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "achievements": earned})
}

func (h *Handler) Progress(c *gin.Context) {
	progress, err := h.achievements.Progress(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "achievements": progress})
}

func (h *Handler) Check(c *gin.Context) {
	res, err := h.achievements.Reconcile(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"achievements": res.Unearned,
		"newly_earned": res.Awarded,
	})
}

func (h *Handler) UserAchievements(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(errutil.BadRequest("invalid user_id", err))
		return
	}

	summary, err := h.achievements.UserSummary(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"user_id":      summary.UserID,
		"achievements": summary.Earned,
		"progress":     summary.Progress,
	})
}

type listQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=0"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

func (h *Handler) ListActivities(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	entries, err := h.activity.List(c.Request.Context(), userID(c), q.Limit, q.Offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "activities": entries})
}

type appendActivityRequest struct {
	ActivityType string          `json:"activity_type" binding:"required"`
	ActivityData json.RawMessage `json:"activity_data"`
}

// AppendActivity records a plain activity and reconciles achievements.
// EXP-bearing types go through /rewards.
func (h *Handler) AppendActivity(c *gin.Context) {
	var req appendActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	if activity.IsRewardType(req.ActivityType) {
		_ = c.Error(errutil.BadRequest("activity type "+req.ActivityType+" is recorded by the reward flow", nil))
		return
	}

	ctx := c.Request.Context()
	uid := userID(c)

	entry, err := h.activity.Append(ctx, uid, req.ActivityType, req.ActivityData)
	if err != nil {
		_ = c.Error(err)
		return
	}
	res, err := h.achievements.Reconcile(ctx, uid)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"activity":     entry,
		"newly_earned": res.Awarded,
	})
}

type grantRequest struct {
	ActivityType string         `json:"activity_type" binding:"required"`
	Amount       int64          `json:"amount" binding:"required"`
	ActivityData map[string]any `json:"activity_data"`
}

func (h *Handler) GrantExp(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	res, err := h.achievements.GrantExp(c.Request.Context(), userID(c), req.Amount, req.ActivityType, req.ActivityData)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Track is called by the platform after a domain action that moves a stat.
func (h *Handler) Track(c *gin.Context) {
	var payload json.RawMessage
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
	}

	res, err := h.achievements.Track(c.Request.Context(), userID(c), c.Param("stat"), payload)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"stat":         res.Stat,
		"value":        res.Value,
		"newly_earned": res.Awarded,
		"total_exp":    res.TotalExp,
		"level":        res.Level,
	})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	list, err := h.notifications.List(c.Request.Context(), userID(c), q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": list})
}
