package achievement

import (
	_ "embed"
	"fmt"
	"sort"

	"ecocommunity-gamification/services/stats"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Definition struct {
	ID          int64          `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	IconName    string         `yaml:"icon_name" json:"icon_name"`
	Category    string         `yaml:"category" json:"category"`
	ExpReward   int64          `yaml:"exp_reward" json:"exp_reward"`
	Criteria    map[string]any `yaml:"criteria" json:"criteria"`

	criterion    Criterion
	criterionErr error
}

// Criterion returns the parsed threshold, or ErrMalformedCriterion when the
// definition can never be satisfied.
func (d Definition) Criterion() (Criterion, error) {
	return d.criterion, d.criterionErr
}

func (d Definition) Slug() string {
	return slug.Make(d.Name)
}

// Catalog is the read-only set of achievement definitions.
type Catalog struct {
	defs []Definition
	byID map[int64]int
}

var categoryOrder = map[string]int{
	stats.CategoryEnvironmentalAction: 0,
	stats.CategoryCommunityEngagement: 1,
	stats.CategoryKnowledgeLearning:   2,
	stats.CategoryPlatformEngagement:  3,
}

func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(catalogYAML)
}

// LoadCatalog parses a catalog document. Duplicate ids and negative rewards
// are rejected; a malformed criterion only disables that definition.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Achievements []Definition `yaml:"achievements"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(doc.Achievements...)
}

func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{byID: make(map[int64]int, len(defs))}
	seen := make(map[int64]struct{}, len(defs))
	for _, d := range defs {
		if d.ID <= 0 {
			return nil, fmt.Errorf("achievement %q: id must be positive", d.Name)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("achievement %d: duplicate id", d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.ExpReward < 0 {
			return nil, fmt.Errorf("achievement %d: negative exp_reward", d.ID)
		}

		d.criterion, d.criterionErr = ParseCriterion(d.Criteria)
		if d.criterionErr != nil {
			zap.L().Warn("achievement is not applicable", zap.Int64("achievement_id", d.ID), zap.Error(d.criterionErr))
		}
		c.defs = append(c.defs, d)
	}

	sort.SliceStable(c.defs, func(i, j int) bool {
		a, b := c.defs[i], c.defs[j]
		if ra, rb := categoryRank(a.Category), categoryRank(b.Category); ra != rb {
			return ra < rb
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.ID < b.ID
	})
	for i, d := range c.defs {
		c.byID[d.ID] = i
	}

	return c, nil
}

func categoryRank(category string) int {
	if r, ok := categoryOrder[category]; ok {
		return r
	}
	return len(categoryOrder)
}

// ListAll returns every definition ordered by category, then id.
func (c *Catalog) ListAll() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) Definition(id int64) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}
