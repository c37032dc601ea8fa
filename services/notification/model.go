package notification

import "time"

const (
	TypeAchievement = "achievement"

	// EventNewNotification is the event name socket sessions listen for.
	EventNewNotification = "new_notification"

	ModeInline = "inline"
	ModeQueue  = "queue"

	DefaultPageSize = 20
	MaxPageSize     = 50
)

type Notification struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	UserID    int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	Type      string    `gorm:"column:type;size:32;not null" json:"type"`
	Title     string    `gorm:"column:title;size:255;not null" json:"title"`
	Content   string    `gorm:"column:content;type:text" json:"content"`
	Link      string    `gorm:"column:link;size:255" json:"link"`
	IsRead    bool      `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Achievement is what the award pipeline hands to the dispatcher.
type Achievement struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	IconName   string `json:"icon_name"`
	ExpGranted int64  `json:"exp_granted"`
}

// Event is the message published to a user's realtime channel.
type Event struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification"`
}

type AchievementUnlockedPayload struct {
	UserID      int64       `json:"user_id"`
	Achievement Achievement `json:"achievement"`
	TraceID     string      `json:"trace_id,omitempty"`
}
