package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"abaquest/internal/models"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed quests.yaml
var embeddedQuests []byte

// ErrQuestNotFound is returned for ids missing from the catalog
var ErrQuestNotFound = errors.New("quest not found")

type catalogFile struct {
	Labels map[string]map[models.Phase]string `yaml:"labels"`
	Quests []models.QuestDefinition           `yaml:"quests"`
}

// Catalog is the read-only quest registry
type Catalog struct {
	quests  map[models.QuestID]*models.QuestDefinition
	ordered []models.QuestID
	labels  map[language.Tag]map[models.Phase]string
	matcher language.Matcher
	tags    []language.Tag
}

// LoadEmbedded loads the catalog compiled into the binary
func LoadEmbedded() (*Catalog, error) {
	return Parse(embeddedQuests)
}

// LoadFile loads a catalog from disk, falling back to the embedded one when path is empty
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return LoadEmbedded()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Quests) == 0 {
		return nil, fmt.Errorf("catalog has no quests")
	}

	c := &Catalog{
		quests: make(map[models.QuestID]*models.QuestDefinition, len(file.Quests)),
		labels: map[language.Tag]map[models.Phase]string{},
	}

	for i := range file.Quests {
		q := file.Quests[i]
		if len(q.Phases) == 0 {
			q.Phases = append([]models.Phase{}, models.DefaultPhases...)
		}
		if err := validateQuest(&q); err != nil {
			return nil, err
		}
		if _, exists := c.quests[q.ID]; exists {
			return nil, fmt.Errorf("quest %d: duplicate id", q.ID)
		}
		c.quests[q.ID] = &q
		c.ordered = append(c.ordered, q.ID)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i] < c.ordered[j] })

	// Sorted so the matcher's fallback (first tag) is stable.
	locales := make([]string, 0, len(file.Labels))
	for locale := range file.Labels {
		locales = append(locales, locale)
	}
	sort.Slice(locales, func(i, j int) bool {
		if locales[i] == "en" {
			return true
		}
		if locales[j] == "en" {
			return false
		}
		return locales[i] < locales[j]
	})
	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("labels: invalid locale %q: %w", locale, err)
		}
		c.labels[tag] = file.Labels[locale]
		c.tags = append(c.tags, tag)
	}
	if len(c.tags) > 0 {
		c.matcher = language.NewMatcher(c.tags)
	}

	return c, nil
}

func validateQuest(q *models.QuestDefinition) error {
	if q.ID <= 0 {
		return fmt.Errorf("quest %d: id must be positive", q.ID)
	}
	if q.CoinReward < 0 {
		return fmt.Errorf("quest %d: coin reward must not be negative", q.ID)
	}
	seen := map[models.Phase]bool{}
	for _, p := range q.Phases {
		if !p.Valid() {
			return fmt.Errorf("quest %d: unknown phase %q", q.ID, string(p))
		}
		if seen[p] {
			return fmt.Errorf("quest %d: phase %q listed twice", q.ID, string(p))
		}
		seen[p] = true
	}
	for i, item := range q.Assessment {
		if item.Answer == "" {
			return fmt.Errorf("quest %d: assessment item %d has no answer", q.ID, i+1)
		}
	}
	return nil
}

// Quest returns the definition for id
func (c *Catalog) Quest(id models.QuestID) (*models.QuestDefinition, error) {
	q, ok := c.quests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrQuestNotFound, id)
	}
	return q, nil
}

// Quests returns all definitions ordered by id
func (c *Catalog) Quests() []*models.QuestDefinition {
	out := make([]*models.QuestDefinition, 0, len(c.ordered))
	for _, id := range c.ordered {
		out = append(out, c.quests[id])
	}
	return out
}

// Phases returns the phase list for id
func (c *Catalog) Phases(id models.QuestID) []models.Phase {
	q, ok := c.quests[id]
	if !ok {
		return nil
	}
	return append([]models.Phase{}, q.Phases...)
}

// CoinReward returns the completion reward for id, or 0 for unknown quests
func (c *Catalog) CoinReward(id models.QuestID) int {
	if q, ok := c.quests[id]; ok {
		return q.CoinReward
	}
	return 0
}

// PhaseLabel returns the display label for p in the best matching locale.
// accept is an Accept-Language style string; unknown phases fall back to the raw name.
func (c *Catalog) PhaseLabel(p models.Phase, accept string) string {
	if c.matcher == nil {
		return string(p)
	}
	tags, _, _ := language.ParseAcceptLanguage(accept)
	_, idx, _ := c.matcher.Match(tags...)
	if label, ok := c.labels[c.tags[idx]][p]; ok {
		return label
	}
	return string(p)
}
