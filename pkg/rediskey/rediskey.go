package rediskey

import "fmt"

const (
	AchievementPrefix  = "gamification:achievements"
	NotificationPrefix = "notifications:user"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildAchievementsKey returns "gamification:achievements:{userID}"
func BuildAchievementsKey(userID int64) string {
	return NamespaceKey(AchievementPrefix, fmt.Sprint(userID))
}

// BuildNotificationChannel returns "notifications:user:{userID}", the
// Pub/Sub channel a user's socket session subscribes to.
func BuildNotificationChannel(userID int64) string {
	return NamespaceKey(NotificationPrefix, fmt.Sprint(userID))
}
