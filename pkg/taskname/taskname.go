package taskname

const (
	// Notification tasks
	NotificationAchievementUnlocked = "notification:achievement_unlocked"
)
