package reward

import "time"

const (
	DefaultDailyLimit  int64 = 5000
	DefaultExpPerLevel int64 = 100
)

// User is the slice of the platform's users table this service touches.
// Only exp is ever written; level is derived from it.
type User struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Exp       int64     `gorm:"column:exp;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (User) TableName() string {
	return "users"
}

type LevelProgress struct {
	Level       int64 `json:"level"`
	Exp         int64 `json:"exp"`
	IntoLevel   int64 `json:"exp_into_level"`
	ToNextLevel int64 `json:"exp_to_next_level"`
}
