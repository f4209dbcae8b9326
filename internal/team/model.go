// Package team holds the festival teams and who plays for them.
package team

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type Team struct {
	ID          string    `gorm:"primaryKey;size:64" yaml:"id" json:"id"`
	Name        string    `gorm:"size:128;not null" yaml:"name" json:"name"`
	Slug        string    `gorm:"size:64;not null;uniqueIndex:teams_slug_key" yaml:"slug" json:"slug"`
	Description string    `gorm:"not null" yaml:"description" json:"description"`
	CrestURL    string    `gorm:"size:512;not null" yaml:"crest_url" json:"crest_url"`
	Color       string    `gorm:"size:16;not null" yaml:"color" json:"color"`
	CreatedAt   time.Time `yaml:"-" json:"-"`
}

func (Team) TableName() string {
	return "teams"
}

// Member is the public view of a teammate.
type Member struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Telegram  string `json:"telegram,omitempty"`
}

//go:embed teams.yaml
var rosterYAML []byte

type roster struct {
	Teams []Team `yaml:"teams"`
}

// Roster parses the embedded team list. Slugs default to ids.
func Roster() ([]Team, error) {
	return parseRoster(rosterYAML)
}

func parseRoster(data []byte) ([]Team, error) {
	var r roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse team roster: %w", err)
	}

	seen := make(map[string]bool, len(r.Teams))
	for i := range r.Teams {
		t := &r.Teams[i]
		if t.ID == "" || t.Name == "" {
			return nil, fmt.Errorf("parse team roster: team %d needs an id and a name", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("parse team roster: duplicate team %q", t.ID)
		}
		seen[t.ID] = true
		if t.Slug == "" {
			t.Slug = t.ID
		}
	}
	return r.Teams, nil
}
