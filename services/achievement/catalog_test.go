package achievement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecocommunity-gamification/services/stats"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	defs := c.ListAll()
	require.Len(t, defs, 38)

	registry := stats.DefaultRegistry()
	seen := map[int64]bool{}
	for i, d := range defs {
		require.False(t, seen[d.ID], "duplicate id %d", d.ID)
		seen[d.ID] = true
		require.NotEmpty(t, d.Name)
		require.Positive(t, d.ExpReward, "achievement %d", d.ID)

		crit, err := d.Criterion()
		require.NoError(t, err, "achievement %d", d.ID)
		_, ok := registry.Lookup(crit.Stat)
		require.True(t, ok, "achievement %d references unknown stat %s", d.ID, crit.Stat)

		if i == 0 {
			continue
		}
		prev := defs[i-1]
		if prev.Category == d.Category {
			require.Less(t, prev.ID, d.ID)
		} else {
			require.Less(t, categoryRank(prev.Category), categoryRank(d.Category))
		}
	}
	require.Equal(t, stats.CategoryEnvironmentalAction, defs[0].Category)

	forest, ok := c.Definition(2)
	require.True(t, ok)
	require.Equal(t, "Forest Guardian", forest.Name)
	require.Equal(t, "forest-guardian", forest.Slug())

	_, ok = c.Definition(999)
	require.False(t, ok)
}

func TestDefaultCatalogCoversLoginAndAccountAge(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, d := range c.ListAll() {
		crit, err := d.Criterion()
		require.NoError(t, err)
		found[crit.Stat] = true
	}
	require.True(t, found[stats.LoginStreak])
	require.True(t, found[stats.AccountAge])
	require.True(t, found[stats.UniqueEventLocations])
	require.True(t, found[stats.ForumSolutions])
	require.True(t, found[stats.GroupMembers])
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog([]byte(`
achievements:
  - id: 2
    name: Talker
    category: community_engagement
    exp_reward: 10
    criteria: {type: forum_replies, count: 3}
  - id: 1
    name: Broken
    category: community_engagement
    exp_reward: 10
    criteria: {type: forum_replies}
  - id: 3
    name: Planter
    category: environmental_action
    exp_reward: 5
    criteria: {type: trees_planted, count: 1}
`))
	require.NoError(t, err)

	defs := c.ListAll()
	require.Equal(t, []int64{3, 1, 2}, []int64{defs[0].ID, defs[1].ID, defs[2].ID})

	broken, ok := c.Definition(1)
	require.True(t, ok)
	_, err = broken.Criterion()
	require.ErrorIs(t, err, ErrMalformedCriterion)
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	_, err := LoadCatalog([]byte("achievements: [{id: 1, name: a}, {id: 1, name: b}]"))
	require.Error(t, err)

	_, err = LoadCatalog([]byte("achievements: [{id: 1, name: a, exp_reward: -1}]"))
	require.Error(t, err)

	_, err = LoadCatalog([]byte("achievements: [{id: 0, name: a}]"))
	require.Error(t, err)

	_, err = LoadCatalog([]byte("achievements: {"))
	require.Error(t, err)
}

func TestNewCatalogRejectsDuplicateAcrossCategories(t *testing.T) {
	a := definition(t, 7, "trees_planted", 1, 100)
	a.Category = stats.CategoryEnvironmentalAction
	b := definition(t, 7, "forum_replies", 10, 200)
	b.Category = stats.CategoryCommunityEngagement

	c, err := NewCatalog(a, b)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate id")
	require.Nil(t, c)
}

func TestParseCriterion(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		stat     string
		required string
		wantErr  bool
	}{
		{name: "count", raw: map[string]any{"type": "forum_replies", "count": 10}, stat: "forum_replies", required: "10"},
		{name: "fractional", raw: map[string]any{"type": "co2_offset", "count": 2.5}, stat: "co2_offset", required: "2.5"},
		{name: "string number", raw: map[string]any{"type": "volunteer_hours", "count": "7.5"}, stat: "volunteer_hours", required: "7.5"},
		{name: "login streak days", raw: map[string]any{"type": "login_streak", "days": 7}, stat: "login_streak", required: "7"},
		{name: "account age months", raw: map[string]any{"type": "account_age", "months": 12}, stat: "account_age", required: "12"},
		{name: "count wins over days", raw: map[string]any{"type": "login_streak", "count": 3, "days": 7}, stat: "login_streak", required: "3"},
		{name: "zero", raw: map[string]any{"type": "trees_planted", "count": 0}, stat: "trees_planted", required: "0"},
		{name: "days on other stat", raw: map[string]any{"type": "forum_replies", "days": 7}, wantErr: true},
		{name: "months on other stat", raw: map[string]any{"type": "login_streak", "months": 2}, wantErr: true},
		{name: "missing type", raw: map[string]any{"count": 1}, wantErr: true},
		{name: "nil", raw: nil, wantErr: true},
		{name: "negative", raw: map[string]any{"type": "forum_replies", "count": -1}, wantErr: true},
		{name: "not a number", raw: map[string]any{"type": "forum_replies", "count": "many"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crit, err := ParseCriterion(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedCriterion)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.stat, crit.Stat)
			require.True(t, decimal.RequireFromString(tt.required).Equal(crit.Required), "got %s", crit.Required)
		})
	}
}

func definition(t *testing.T, id int64, stat string, required any, reward int64) Definition {
	t.Helper()
	c, err := NewCatalog(Definition{
		ID:        id,
		Name:      "Achievement " + stat,
		Category:  stats.CategoryCommunityEngagement,
		ExpReward: reward,
		Criteria:  map[string]any{"type": stat, "count": required},
	})
	require.NoError(t, err)
	def, _ := c.Definition(id)
	return def
}

func values(kv ...any) stats.Values {
	v := stats.Values{}
	for i := 0; i < len(kv); i += 2 {
		v[kv[i].(string)] = decimal.RequireFromString(kv[i+1].(string))
	}
	return v
}

func TestEvaluate(t *testing.T) {
	replies := definition(t, 1, stats.ForumReplies, 10, 200)

	p := Evaluate(replies, values(stats.ForumReplies, "7"))
	require.True(t, p.Applicable)
	require.Equal(t, int64(70), p.Percent)
	require.Equal(t, 7.0, p.Current)
	require.Equal(t, 10.0, p.Required)
	require.False(t, p.Satisfied)

	p = Evaluate(replies, values(stats.ForumReplies, "10"))
	require.Equal(t, int64(100), p.Percent)
	require.True(t, p.Satisfied)

	p = Evaluate(replies, values(stats.ForumReplies, "25"))
	require.Equal(t, int64(100), p.Percent)
	require.True(t, p.Satisfied)

	p = Evaluate(replies, values(stats.ForumReplies, "9.99"))
	require.Equal(t, int64(99), p.Percent)
	require.False(t, p.Satisfied)
}

func TestEvaluateEdgeCases(t *testing.T) {
	co2 := definition(t, 1, stats.CO2Offset, 10, 100)
	p := Evaluate(co2, values(stats.CO2Offset, "2.5"))
	require.Equal(t, int64(25), p.Percent)

	// absent stat: zero and never satisfied
	p = Evaluate(co2, values(stats.ForumReplies, "100"))
	require.True(t, p.Applicable)
	require.Zero(t, p.Percent)
	require.False(t, p.Satisfied)

	free := definition(t, 2, stats.TreesPlanted, 0, 10)
	p = Evaluate(free, values(stats.TreesPlanted, "0"))
	require.Equal(t, int64(100), p.Percent)
	require.True(t, p.Satisfied)

	p = Evaluate(free, stats.Values{})
	require.False(t, p.Satisfied)

	c, err := NewCatalog(Definition{ID: 3, Name: "Broken", ExpReward: 10, Criteria: map[string]any{"type": "forum_replies", "weeks": 2}})
	require.NoError(t, err)
	broken, _ := c.Definition(3)
	p = Evaluate(broken, values(stats.ForumReplies, "100"))
	require.False(t, p.Applicable)
	require.False(t, p.Satisfied)
	require.Zero(t, p.Percent)
}
