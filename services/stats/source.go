package stats

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The tables read here belong to the events, forum, blog, learning, group,
// challenge and account services. This package never writes to them.

// groupsTable is quoted by the dialect; GROUPS is reserved in MySQL 8.
var groupsTable = clause.Table{Name: "groups", Alias: "g"}

func scalar(q *gorm.DB) (decimal.Decimal, error) {
	var row struct {
		Value decimal.Decimal
	}
	if err := q.Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Value, nil
}

func count(q *gorm.DB) (decimal.Decimal, error) {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(n), nil
}

func countWhere(table, where string) Query {
	return func(ctx context.Context, db *gorm.DB, userID int64, _ time.Time) (decimal.Decimal, error) {
		return count(db.WithContext(ctx).Table(table).Where(where, userID))
	}
}

// sumJoinedEvents sums an events column over every event the user joined.
func sumJoinedEvents(column string) Query {
	return func(ctx context.Context, db *gorm.DB, userID int64, _ time.Time) (decimal.Decimal, error) {
		return scalar(db.WithContext(ctx).
			Table("event_participants AS ep").
			Joins("JOIN events e ON ep.event_id = e.id").
			Where("ep.user_id = ?", userID).
			Select("COALESCE(SUM(e." + column + "), 0) AS value"))
	}
}

func uniqueEventLocations(ctx context.Context, db *gorm.DB, userID int64, _ time.Time) (decimal.Decimal, error) {
	return scalar(db.WithContext(ctx).
		Table("event_participants AS ep").
		Joins("JOIN events e ON ep.event_id = e.id").
		Where("ep.user_id = ?", userID).
		Select("COUNT(DISTINCT e.location) AS value"))
}

func groupsCreated(ctx context.Context, db *gorm.DB, userID int64, _ time.Time) (decimal.Decimal, error) {
	return count(db.WithContext(ctx).Table("?", groupsTable).Where("g.creator_id = ?", userID))
}

// largestGroup is the member count of the biggest group the user created.
func largestGroup(ctx context.Context, db *gorm.DB, userID int64, _ time.Time) (decimal.Decimal, error) {
	sizes := db.WithContext(ctx).
		Table("?", groupsTable).
		Select("g.id, COUNT(gm.id) AS member_count").
		Joins("LEFT JOIN group_members gm ON gm.group_id = g.id").
		Where("g.creator_id = ?", userID).
		Group("g.id")

	return scalar(db.WithContext(ctx).
		Table("(?) AS sizes", sizes).
		Select("COALESCE(MAX(sizes.member_count), 0) AS value"))
}

func forumLikes(ctx context.Context, db *gorm.DB, userID int64, _ time.Time) (decimal.Decimal, error) {
	discussions := db.Table("forum_discussions").Select("id").Where("author_id = ?", userID)
	replies := db.Table("forum_replies").Select("id").Where("author_id = ?", userID)

	return count(db.WithContext(ctx).
		Table("forum_likes").
		Where("discussion_id IN (?) OR reply_id IN (?)", discussions, replies))
}

func learningByCompletion(kind string) Query {
	return func(ctx context.Context, db *gorm.DB, userID int64, _ time.Time) (decimal.Decimal, error) {
		return count(db.WithContext(ctx).
			Table("learning_material_progress").
			Where("user_id = ? AND completion_type = ?", userID, kind))
	}
}

func loginStreak(ctx context.Context, db *gorm.DB, userID int64, now time.Time) (decimal.Decimal, error) {
	var logins []time.Time
	if err := db.WithContext(ctx).
		Table("user_logins").
		Where("user_id = ?", userID).
		Pluck("login_time", &logins).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(int64(LongestStreak(logins, now.Location()))), nil
}

func accountAge(ctx context.Context, db *gorm.DB, userID int64, now time.Time) (decimal.Decimal, error) {
	var created []time.Time
	if err := db.WithContext(ctx).
		Table("users").
		Where("id = ?", userID).
		Limit(1).
		Pluck("created_at", &created).Error; err != nil {
		return decimal.Zero, err
	}
	if len(created) == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromInt(int64(WholeMonths(created[0], now))), nil
}

// LongestStreak is the length of the longest run of consecutive calendar
// days, in loc, that contain at least one login.
func LongestStreak(logins []time.Time, loc *time.Location) int {
	if len(logins) == 0 {
		return 0
	}

	seen := make(map[time.Time]struct{}, len(logins))
	days := make([]time.Time, 0, len(logins))
	for _, t := range logins {
		y, m, d := t.In(loc).Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// WholeMonths counts complete months from since to now, never negative.
func WholeMonths(since, now time.Time) int {
	since = since.In(now.Location())
	months := (now.Year()-since.Year())*12 + int(now.Month()-since.Month())

	anniversary := since.AddDate(0, months, 0)
	if anniversary.After(now) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
