package srs

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Card limits applied by Factory.Generate.
const (
	DefaultCardLimit  = 20
	MaxCardLimit      = 100
	DefaultSourceType = "lesson"
)

// GenerateRequest asks for a deck built from the segments of one source.
type GenerateRequest struct {
	SourceID           string     `json:"source_id"`
	SourceType         string     `json:"source_type,omitempty"`
	Name               string     `json:"name,omitempty"`
	IncludeDefinitions bool       `json:"include_definitions"`
	IncludeExamples    bool       `json:"include_examples"`
	CardLimit          *int       `json:"card_limit,omitempty"`
	Difficulty         Difficulty `json:"difficulty,omitempty"`
	Tags               []string   `json:"tags,omitempty"`
}

// GenerateResult is a freshly generated deck.
type GenerateResult struct {
	Deck             Deck  `json:"deck"`
	GenerationTimeMs int64 `json:"generation_time_ms"`
}

// Factory turns segments into decks of new flashcards.
type Factory struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to uuid.NewString.
	NewID func() string
}

// NewFactory returns a Factory using the wall clock and random UUIDs.
func NewFactory() *Factory {
	return &Factory{Now: time.Now, NewID: uuid.NewString}
}

// Validate checks req against the generation constraints.
func (r GenerateRequest) Validate() error {
	const op = "generate"
	if strings.TrimSpace(r.SourceID) == "" {
		return NewError(KindValidation, op, ErrMissingSourceID, "sourceId must not be empty")
	}
	if r.CardLimit != nil && (*r.CardLimit < 1 || *r.CardLimit > MaxCardLimit) {
		return NewError(KindValidation, op, ErrInvalidCardLimit,
			"cardLimit must be between 1 and %d, got %d", MaxCardLimit, *r.CardLimit)
	}
	if !r.Difficulty.IsValid() {
		return NewError(KindValidation, op, ErrInvalidDifficulty, "unknown difficulty %q", r.Difficulty)
	}
	return nil
}

// Generate builds a deck from the eligible segments, in input order.
func (f *Factory) Generate(req GenerateRequest, segments []Segment) (res GenerateResult, err error) {
	defer recoverInternal("generate", &err)

	if err := req.Validate(); err != nil {
		return GenerateResult{}, err
	}

	now := f.now()
	eligible := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Eligible() {
			eligible = append(eligible, seg)
		}
	}
	if len(eligible) == 0 {
		return GenerateResult{}, NewError(KindEmptyInput, "generate", ErrNoEligibleContent,
			"source %q has no segments with text and a phonetic rendering", req.SourceID)
	}

	limit := DefaultCardLimit
	if req.CardLimit != nil {
		limit = *req.CardLimit
	}
	eligible = eligible[:min(limit, len(eligible))]

	deckID := f.newID()
	cards := make([]Flashcard, 0, len(eligible))
	for _, seg := range eligible {
		cards = append(cards, f.newCard(req, seg, now))
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = DefaultSourceType
	}
	name := req.Name
	if name == "" {
		name = req.SourceID + " flashcards"
	}

	deck := Deck{
		ID:        deckID,
		Name:      name,
		Cards:     cards,
		Source:    Provenance{Type: sourceType, ID: req.SourceID},
		CreatedAt: now,
		Metadata: DeckMetadata{
			CardCount:  len(cards),
			Difficulty: req.Difficulty,
			Tags:       copyTags(req.Tags),
		},
	}

	return GenerateResult{
		Deck:             deck,
		GenerationTimeMs: f.now().Sub(now).Milliseconds(),
	}, nil
}

func (f *Factory) newCard(req GenerateRequest, seg Segment, now time.Time) Flashcard {
	back := CardBack{
		Phonetic: seg.Phonetic(),
		AudioRef: seg.AudioRef,
	}
	if req.IncludeDefinitions {
		back.Definition = strings.TrimSpace(seg.Definition)
	}
	if req.IncludeExamples {
		back.Example = strings.TrimSpace(seg.Example)
	}
	return Flashcard{
		ID:         f.newID(),
		Front:      strings.TrimSpace(seg.Text),
		Back:       back,
		SegmentID:  seg.ID,
		Tags:       copyTags(req.Tags),
		CreatedAt:  now,
		Scheduling: NewSchedulingState(now),
	}
}

func (f *Factory) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func (f *Factory) newID() string {
	if f.NewID == nil {
		return uuid.NewString()
	}
	return f.NewID()
}

func copyTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return append([]string(nil), tags...)
}
