package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Query computes one stat for a user from its source tables.
type Query func(ctx context.Context, db *gorm.DB, userID int64, now time.Time) (decimal.Decimal, error)

type Definition struct {
	Name     string
	Category string
	Query    Query
}

// Registry is the declarative stat -> query table. Adding a stat means
// adding a row here; evaluation code does not change.
type Registry struct {
	defs   []Definition
	byName map[string]Definition
}

func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{byName: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.byName[d.Name]; dup {
			panic("stats: duplicate stat " + d.Name)
		}
		r.defs = append(r.defs, d)
		r.byName[d.Name] = d
	}
	return r
}

// DefaultRegistry returns every stat the achievement catalog can reference.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Definition{TreesPlanted, CategoryEnvironmentalAction, sumJoinedEvents("trees_planted")},
		Definition{CO2Offset, CategoryEnvironmentalAction, sumJoinedEvents("co2_offset")},
		Definition{VolunteerHours, CategoryEnvironmentalAction, sumJoinedEvents("volunteer_hour")},
		Definition{ChallengesCompleted, CategoryEnvironmentalAction, countWhere("challenge_status", "user_id = ? AND status = 'completed'")},

		Definition{EventsJoined, CategoryCommunityEngagement, countWhere("event_participants", "user_id = ?")},
		Definition{EventsCreated, CategoryCommunityEngagement, countWhere("events", "organizer_id = ?")},
		Definition{GroupsCreated, CategoryCommunityEngagement, groupsCreated},
		Definition{ForumDiscussions, CategoryCommunityEngagement, countWhere("forum_discussions", "author_id = ?")},
		Definition{ForumReplies, CategoryCommunityEngagement, countWhere("forum_replies", "author_id = ?")},
		Definition{ForumLikes, CategoryCommunityEngagement, forumLikes},
		Definition{ForumSolutions, CategoryCommunityEngagement, countWhere("forum_replies", "author_id = ? AND is_solution = TRUE")},
		Definition{UniqueEventLocations, CategoryCommunityEngagement, uniqueEventLocations},
		Definition{GroupMembers, CategoryCommunityEngagement, largestGroup},
		Definition{FollowersCount, CategoryCommunityEngagement, countWhere("user_followers", "followed_id = ?")},
		Definition{FollowingCount, CategoryCommunityEngagement, countWhere("user_followers", "follower_id = ?")},

		Definition{LearningCompleted, CategoryKnowledgeLearning, learningByCompletion("completion")},
		Definition{MaterialsRead, CategoryKnowledgeLearning, learningByCompletion("view")},
		Definition{BlogComments, CategoryKnowledgeLearning, countWhere("blog_comments", "user_id = ?")},
		Definition{BlogPosts, CategoryKnowledgeLearning, countWhere("blog_posts", "author_id = ?")},

		Definition{LoginCount, CategoryPlatformEngagement, countWhere("user_logins", "user_id = ?")},
		Definition{LoginStreak, CategoryPlatformEngagement, loginStreak},
		Definition{AccountAge, CategoryPlatformEngagement, accountAge},
	)
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.byName[name]
	return d, ok
}

func (r *Registry) Definitions() []Definition {
	return r.defs
}

// Defaults is a snapshot document with every registered stat at zero.
func (r *Registry) Defaults() Values {
	v := make(Values, len(r.defs))
	for _, d := range r.defs {
		v[d.Name] = decimal.Zero
	}
	return v
}

// Categories groups stat names for display, in registration order.
func (r *Registry) Categories() []Category {
	var out []Category
	index := map[string]int{}
	for _, d := range r.defs {
		i, ok := index[d.Category]
		if !ok {
			i = len(out)
			index[d.Category] = i
			out = append(out, Category{Name: d.Category})
		}
		out[i].Stats = append(out[i].Stats, d.Name)
	}
	return out
}
