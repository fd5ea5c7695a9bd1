package srs

import (
	"strings"
	"time"
)

// Segment is one annotated unit of source text, as produced by the
// segmentation pipeline.
type Segment struct {
	ID         string `json:"id" yaml:"id" validate:"required"`
	Text       string `json:"text" yaml:"text"`
	Pinyin     string `json:"pinyin,omitempty" yaml:"pinyin"`
	ToneMarks  string `json:"tone_marks,omitempty" yaml:"tone_marks"`
	Definition string `json:"definition,omitempty" yaml:"definition"`
	Example    string `json:"example,omitempty" yaml:"example"`
	AudioRef   string `json:"audio_ref,omitempty" yaml:"audio_ref"`
}

// Phonetic returns the tone-marked rendering when present, else the pinyin.
func (s Segment) Phonetic() string {
	if tm := strings.TrimSpace(s.ToneMarks); tm != "" {
		return tm
	}
	return strings.TrimSpace(s.Pinyin)
}

// Eligible reports whether a flashcard can be built from the segment.
func (s Segment) Eligible() bool {
	return strings.TrimSpace(s.Text) != "" && s.Phonetic() != ""
}

// CardBack is the answer side of a flashcard.
type CardBack struct {
	Phonetic   string `json:"phonetic"`
	Definition string `json:"definition,omitempty"`
	Example    string `json:"example,omitempty"`
	AudioRef   string `json:"audio_ref,omitempty"`
}

// Flashcard is a single card with its own scheduling state.
type Flashcard struct {
	ID         string          `json:"id"`
	Front      string          `json:"front"`
	Back       CardBack        `json:"back"`
	SegmentID  string          `json:"segment_id"`
	Tags       []string        `json:"tags,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Scheduling SchedulingState `json:"scheduling"`
}

// HasAllTags reports whether the card carries every tag in tags.
func (c Flashcard) HasAllTags(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(c.Tags))
	for _, t := range c.Tags {
		have[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// Difficulty is the declared level of a deck.
type Difficulty string

const (
	DifficultyUnspecified  Difficulty = ""
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid reports whether d is a known difficulty or unspecified.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyUnspecified, DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Provenance records where a deck's content came from.
type Provenance struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// DeckMetadata summarises a deck at creation time.
type DeckMetadata struct {
	CardCount  int        `json:"card_count"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// Deck is an ordered collection of flashcards generated from one source.
type Deck struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Cards     []Flashcard  `json:"cards"`
	Source    Provenance   `json:"source"`
	CreatedAt time.Time    `json:"created_at"`
	Metadata  DeckMetadata `json:"metadata"`
}

// Card returns a pointer to the card with the given id, or nil.
// The pointer aliases the deck's storage.
func (d *Deck) Card(id string) *Flashcard {
	for i := range d.Cards {
		if d.Cards[i].ID == id {
			return &d.Cards[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the deck.
func (d Deck) Clone() Deck {
	out := d
	out.Cards = make([]Flashcard, len(d.Cards))
	for i, c := range d.Cards {
		if c.Tags != nil {
			c.Tags = append([]string(nil), c.Tags...)
		}
		if c.Scheduling.LastReviewedAt != nil {
			t := *c.Scheduling.LastReviewedAt
			c.Scheduling.LastReviewedAt = &t
		}
		out.Cards[i] = c
	}
	if d.Metadata.Tags != nil {
		out.Metadata.Tags = append([]string(nil), d.Metadata.Tags...)
	}
	return out
}
