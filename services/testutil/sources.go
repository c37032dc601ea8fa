package testutil

import (
	"testing"

	"gorm.io/gorm"
)

// CreateSourceTables creates minimal versions of the tables owned by the
// rest of the platform that stats are computed from.
func CreateSourceTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	Exec(t, db,
		`CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, exp INTEGER NOT NULL DEFAULT 0, created_at DATETIME)`,
		`CREATE TABLE IF NOT EXISTS events (id INTEGER PRIMARY KEY, organizer_id INTEGER, location TEXT, trees_planted INTEGER NOT NULL DEFAULT 0, co2_offset REAL NOT NULL DEFAULT 0, volunteer_hour REAL NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS event_participants (id INTEGER PRIMARY KEY, event_id INTEGER, user_id INTEGER)`,
		`CREATE TABLE IF NOT EXISTS challenge_status (id INTEGER PRIMARY KEY, user_id INTEGER, challenge_id INTEGER, status TEXT)`,
		`CREATE TABLE IF NOT EXISTS "groups" (id INTEGER PRIMARY KEY, creator_id INTEGER, name TEXT)`,
		`CREATE TABLE IF NOT EXISTS group_members (id INTEGER PRIMARY KEY, group_id INTEGER, user_id INTEGER)`,
		`CREATE TABLE IF NOT EXISTS forum_discussions (id INTEGER PRIMARY KEY, author_id INTEGER)`,
		`CREATE TABLE IF NOT EXISTS forum_replies (id INTEGER PRIMARY KEY, discussion_id INTEGER, author_id INTEGER, is_solution BOOLEAN NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS forum_likes (id INTEGER PRIMARY KEY, user_id INTEGER, discussion_id INTEGER, reply_id INTEGER)`,
		`CREATE TABLE IF NOT EXISTS learning_material_progress (id INTEGER PRIMARY KEY, user_id INTEGER, material_id INTEGER, completion_type TEXT)`,
		`CREATE TABLE IF NOT EXISTS blog_comments (id INTEGER PRIMARY KEY, post_id INTEGER, user_id INTEGER)`,
		`CREATE TABLE IF NOT EXISTS blog_posts (id INTEGER PRIMARY KEY, author_id INTEGER)`,
		`CREATE TABLE IF NOT EXISTS user_logins (id INTEGER PRIMARY KEY, user_id INTEGER, login_time DATETIME)`,
		`CREATE TABLE IF NOT EXISTS user_followers (id INTEGER PRIMARY KEY, follower_id INTEGER, followed_id INTEGER)`,
	)
}

// AddForumReplies inserts n replies authored by userID.
func AddForumReplies(t *testing.T, db *gorm.DB, userID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := db.Exec(`INSERT INTO forum_replies (discussion_id, author_id) VALUES (1, ?)`, userID).Error; err != nil {
			t.Fatalf("insert forum reply: %v", err)
		}
	}
}
