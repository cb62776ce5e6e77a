// Package seed loads the bundled badge catalog, prompts and quests.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/quest"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Badges     []BadgeDef     `yaml:"badges"`
	Challenges []ChallengeDef `yaml:"challenges"`
	Quests     []QuestDef     `yaml:"quests"`
}

type BadgeDef struct {
	Slug             string `yaml:"slug"`
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	RequirementType  string `yaml:"requirement_type"`
	RequirementValue int    `yaml:"requirement_value"`
	Icon             string `yaml:"icon"`
	Color            string `yaml:"color"`
}

type ChallengeDef struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Difficulty  string `yaml:"difficulty"`
	XPReward    int    `yaml:"xp_reward"`
	DayNumber   int    `yaml:"day_number"`
	Daily       bool   `yaml:"daily"`
}

type QuestDef struct {
	Kind        string    `yaml:"kind"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Tasks       []TaskDef `yaml:"tasks"`
}

type TaskDef struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	XPReward    int    `yaml:"xp_reward"`
}

// Target is what the seeder writes into.
type Target interface {
	UpsertBadge(ctx context.Context, b *badge.Badge) (*badge.Badge, error)
	UpsertChallenge(ctx context.Context, c *challenge.Challenge) (*challenge.Challenge, error)
	UpsertQuest(ctx context.Context, q *quest.Quest) (*quest.Quest, error)
}

type Result struct {
	Badges     int
	Challenges int
	Quests     int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalog: %w", err)
	}
	return &c, nil
}

// Load upserts every catalog entry. Entries are keyed by slug, title and
// (kind, title), so running it again updates rather than duplicates.
func Load(ctx context.Context, target Target, c *Catalog, logger *zap.Logger) (Result, error) {
	var res Result

	for _, def := range c.Badges {
		b := &badge.Badge{
			Slug:             def.Slug,
			Name:             def.Name,
			Description:      def.Description,
			RequirementType:  badge.RequirementType(def.RequirementType),
			RequirementValue: def.RequirementValue,
			Icon:             badge.ParseIcon(def.Icon),
			Color:            badge.ParseColor(def.Color),
		}
		if _, err := target.UpsertBadge(ctx, b); err != nil {
			return res, fmt.Errorf("badge %q: %w", def.Slug, err)
		}
		res.Badges++
	}

	for _, def := range c.Challenges {
		ch := &challenge.Challenge{
			Title:       def.Title,
			Description: def.Description,
			Category:    def.Category,
			Difficulty:  challenge.Difficulty(def.Difficulty),
			XPReward:    def.XPReward,
			DayNumber:   def.DayNumber,
			IsDaily:     def.Daily,
		}
		if err := ch.Validate(); err != nil {
			return res, fmt.Errorf("challenge %q: %w", def.Title, err)
		}
		if _, err := target.UpsertChallenge(ctx, ch); err != nil {
			return res, fmt.Errorf("challenge %q: %w", def.Title, err)
		}
		res.Challenges++
	}

	for _, def := range c.Quests {
		q := &quest.Quest{
			Kind:        quest.Kind(def.Kind),
			Title:       def.Title,
			Description: def.Description,
		}
		for _, t := range def.Tasks {
			q.Tasks = append(q.Tasks, &quest.Task{
				Title:       t.Title,
				Description: t.Description,
				XPReward:    t.XPReward,
			})
		}
		if _, err := target.UpsertQuest(ctx, q); err != nil {
			return res, fmt.Errorf("quest %q: %w", def.Title, err)
		}
		res.Quests++
	}

	logger.Info("Seed: catalog loaded",
		zap.Int("badges", res.Badges),
		zap.Int("challenges", res.Challenges),
		zap.Int("quests", res.Quests),
	)
	return res, nil
}
