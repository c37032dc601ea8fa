package activity

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeAchievementEarned  = "achievement_earned"
	TypeChallengeCompleted = "challenge_completed"
	TypeLearningCompleted  = "learning_completed"
)

// RewardTypes are the activity types counted against the daily EXP cap.
var RewardTypes = []string{
	TypeAchievementEarned,
	TypeChallengeCompleted,
	TypeLearningCompleted,
}

// TypeStatPrefix namespaces tracked domain actions. learning_completed is
// both a stat and a reward type, and a tracked action grants nothing.
const TypeStatPrefix = "stat:"

func StatType(stat string) string {
	return TypeStatPrefix + stat
}

func IsRewardType(t string) bool {
	for _, r := range RewardTypes {
		if r == t {
			return true
		}
	}
	return false
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

type Entry struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	UserID       int64          `gorm:"column:user_id;not null;index:idx_user_activities_user_created,priority:1" json:"user_id"`
	ActivityType string         `gorm:"column:activity_type;size:64;not null" json:"activity_type"`
	ActivityData datatypes.JSON `gorm:"column:activity_data" json:"activity_data"`
	ExpGranted   int64          `gorm:"column:exp_granted;not null;default:0" json:"exp_granted"`
	CreatedAt    time.Time      `gorm:"column:created_at;index:idx_user_activities_user_created,priority:2" json:"created_at"`
}

func (Entry) TableName() string {
	return "user_activities"
}

type Params struct {
	UserID       int64
	ActivityType string
	Payload      any
	ExpGranted   int64
}
