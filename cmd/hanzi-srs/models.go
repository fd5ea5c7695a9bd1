package main

import (
	"errors"
	"time"

	"github.com/danieldreier/hanzi-srs/internal/srs"
)

// DeckSummary describes a deck without its cards
type DeckSummary struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Source     srs.Provenance `json:"source"`
	CreatedAt  time.Time      `json:"created_at"`
	CardCount  int            `json:"card_count"`
	DueCards   int            `json:"due_cards"`
	Difficulty srs.Difficulty `json:"difficulty,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
}

func summarizeDeck(d srs.Deck, now time.Time) DeckSummary {
	due := 0
	for _, c := range d.Cards {
		if c.Scheduling.IsDue(now) {
			due++
		}
	}
	return DeckSummary{
		ID:         d.ID,
		Name:       d.Name,
		Source:     d.Source,
		CreatedAt:  d.CreatedAt,
		CardCount:  len(d.Cards),
		DueCards:   due,
		Difficulty: d.Metadata.Difficulty,
		Tags:       d.Metadata.Tags,
	}
}

// StatsResponse represents the response structure for deck_stats
type StatsResponse struct {
	DeckID string `json:"deck_id"`
	srs.DeckStats
	ReviewsToday  int     `json:"reviews_today"`
	RetentionRate float64 `json:"retention_rate"`
	StudyStreak   int     `json:"study_streak"`
}

// DueCardsResponse represents the response structure for get_due_cards
type DueCardsResponse struct {
	DeckID string `json:"deck_id"`
	srs.DueQueueResult
}

// ReviewResponse represents the response structure for submit_review
type ReviewResponse struct {
	Success bool   `json:"success"`
	DeckID  string `json:"deck_id"`
	srs.ReviewResult
}

// ListDecksResponse represents the response structure for list_decks
type ListDecksResponse struct {
	Decks []DeckSummary `json:"decks"`
}

// DeleteDeckResponse represents the response structure for delete_deck
type DeleteDeckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is returned by every tool that fails
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the kind and message of a failure
type ErrorBody struct {
	Kind    srs.Kind `json:"kind"`
	Message string   `json:"message"`
}

func newErrorResponse(err error) ErrorResponse {
	body := ErrorBody{Kind: srs.KindOf(err), Message: err.Error()}
	var e *srs.Error
	if errors.As(err, &e) {
		body.Message = e.Message
	}
	return ErrorResponse{Error: body}
}
