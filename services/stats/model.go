package stats

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TreesPlanted         = "trees_planted"
	CO2Offset            = "co2_offset"
	VolunteerHours       = "volunteer_hours"
	ChallengesCompleted  = "challenges_completed"
	EventsJoined         = "events_joined"
	EventsCreated        = "events_created"
	GroupsCreated        = "groups_created"
	ForumDiscussions     = "forum_discussions"
	ForumReplies         = "forum_replies"
	ForumLikes           = "forum_likes"
	ForumSolutions       = "forum_solutions"
	UniqueEventLocations = "unique_event_locations"
	GroupMembers         = "group_members"
	FollowersCount       = "followers_count"
	FollowingCount       = "following_count"
	LearningCompleted    = "learning_completed"
	MaterialsRead        = "materials_read"
	BlogComments         = "blog_comments"
	BlogPosts            = "blog_posts"
	LoginCount           = "login_count"
	LoginStreak          = "login_streak"
	AccountAge           = "account_age"
)

const (
	CategoryEnvironmentalAction = "environmental_action"
	CategoryCommunityEngagement = "community_engagement"
	CategoryKnowledgeLearning   = "knowledge_learning"
	CategoryPlatformEngagement  = "platform_engagement"
)

// Values maps a stat name to its current value. It encodes as plain JSON
// numbers so the stored document stays readable by other services.
type Values map[string]decimal.Decimal

func (v Values) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(v))
	for k, d := range v {
		out[k] = json.RawMessage(d.String())
	}
	return json.Marshal(out)
}

// Get returns the value and whether the stat is present at all.
func (v Values) Get(name string) (decimal.Decimal, bool) {
	d, ok := v[name]
	return d, ok
}

func (v Values) clone() Values {
	out := make(Values, len(v))
	for k, d := range v {
		out[k] = d
	}
	return out
}

type Snapshot struct {
	UserID      int64                      `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	StatsData   datatypes.JSONType[Values] `gorm:"column:stats_data" json:"stats"`
	LastUpdated time.Time                  `gorm:"column:last_updated" json:"last_updated"`
}

func (Snapshot) TableName() string {
	return "user_stats"
}

func (s *Snapshot) Values() Values {
	if s == nil || s.StatsData.Data() == nil {
		return Values{}
	}
	return s.StatsData.Data()
}

type Category struct {
	Name  string   `json:"name"`
	Stats []string `json:"stats"`
}
