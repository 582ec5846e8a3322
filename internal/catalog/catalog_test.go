package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"abaquest/internal/models"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	quests := c.Quests()
	if len(quests) != 4 {
		t.Fatalf("Quests() returned %d quests, want 4", len(quests))
	}

	wantRewards := map[models.QuestID]int{1: 20, 2: 25, 3: 30, 4: 35}
	for i, q := range quests {
		if q.ID != models.QuestID(i+1) {
			t.Errorf("Quests()[%d].ID = %v, want %v", i, q.ID, i+1)
		}
		if c.CoinReward(q.ID) != wantRewards[q.ID] {
			t.Errorf("CoinReward(%d) = %v, want %v", q.ID, c.CoinReward(q.ID), wantRewards[q.ID])
		}
		if len(q.Phases) != 6 || q.Phases[0] != models.PhaseWelcome || q.Phases[5] != models.PhaseClose {
			t.Errorf("quest %d phases = %v", q.ID, q.Phases)
		}
		if len(q.Assessment) == 0 {
			t.Errorf("quest %d has no assessment items", q.ID)
		}
	}
}

func TestPretestAndPosttestMatch(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	for _, q := range c.Quests() {
		pre := q.ItemsFor(models.PhasePretest)
		post := q.ItemsFor(models.PhasePosttest)
		if len(pre) != len(post) {
			t.Errorf("quest %d: pretest %d items, posttest %d items", q.ID, len(pre), len(post))
			continue
		}
		for i := range pre {
			if pre[i].Prompt != post[i].Prompt || pre[i].Answer != post[i].Answer {
				t.Errorf("quest %d: item %d differs", q.ID, i+1)
			}
		}
	}
}

func TestQuestNotFound(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	if _, err := c.Quest(9); !errors.Is(err, ErrQuestNotFound) {
		t.Errorf("Quest(9) error = %v, want ErrQuestNotFound", err)
	}
	if c.Phases(9) != nil {
		t.Error("Phases(9) should be nil")
	}
	if c.CoinReward(9) != 0 {
		t.Error("CoinReward(9) should be 0")
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name:    "empty",
			yaml:    "quests: []",
			wantErr: true,
		},
		{
			name: "default phases filled in",
			yaml: `
quests:
  - id: 1
    coin_reward: 5
    assessment:
      - prompt: q
        answer: a
`,
		},
		{
			name: "custom shorter phase list",
			yaml: `
quests:
  - id: 1
    phases: [welcome, learn, close]
`,
		},
		{
			name: "unknown phase",
			yaml: `
quests:
  - id: 1
    phases: [welcome, dance]
`,
			wantErr: true,
		},
		{
			name: "duplicate phase",
			yaml: `
quests:
  - id: 1
    phases: [welcome, welcome]
`,
			wantErr: true,
		},
		{
			name: "duplicate id",
			yaml: `
quests:
  - id: 1
  - id: 1
`,
			wantErr: true,
		},
		{
			name: "negative reward",
			yaml: `
quests:
  - id: 1
    coin_reward: -1
`,
			wantErr: true,
		},
		{
			name: "assessment without answer",
			yaml: `
quests:
  - id: 1
    assessment:
      - prompt: q
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPhaseCountIsData(t *testing.T) {
	c, err := Parse([]byte("quests:\n  - id: 7\n    phases: [welcome, learn, close]\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len(c.Phases(7)); got != 3 {
		t.Errorf("len(Phases(7)) = %v, want 3", got)
	}
}

func TestPhaseLabel(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	tests := []struct {
		accept string
		phase  models.Phase
		want   string
	}{
		{"", models.PhasePretest, "Pre-Test"},
		{"en-US", models.PhaseClose, "Quest Complete"},
		{"es-MX,es;q=0.9", models.PhaseStory, "Hora del cuento"},
		{"fr", models.PhaseLearn, "Learn"},
		{"en", models.Phase("bonus"), "bonus"},
	}

	for _, tt := range tests {
		t.Run(tt.accept+"/"+string(tt.phase), func(t *testing.T) {
			if got := c.PhaseLabel(tt.phase, tt.accept); got != tt.want {
				t.Errorf("PhaseLabel(%q, %q) = %q, want %q", tt.phase, tt.accept, got, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quests.yaml")
	if err := os.WriteFile(path, []byte("quests:\n  - id: 1\n    coin_reward: 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.CoinReward(1) != 99 {
		t.Errorf("CoinReward(1) = %v, want 99", c.CoinReward(1))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() of a missing file should fail")
	}
}
