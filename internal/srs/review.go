package srs

import (
	"time"

	"github.com/google/uuid"
)

// ReviewRequest is one rating of one card.
type ReviewRequest struct {
	CardID         string `json:"card_id"`
	Quality        int    `json:"quality"`
	ResponseTimeMs *int   `json:"response_time_ms,omitempty"`
}

// ReviewLog records a completed review.
type ReviewLog struct {
	ID              string    `json:"id"`
	DeckID          string    `json:"deck_id"`
	CardID          string    `json:"card_id"`
	Quality         Quality   `json:"quality"`
	ReviewedAt      time.Time `json:"reviewed_at"`
	ResponseTimeMs  *int      `json:"response_time_ms,omitempty"`
	Interval        int       `json:"interval"`
	EaseFactor      float64   `json:"ease_factor"`
	RepetitionCount int       `json:"repetition_count"`
}

// ReviewResult is the outcome of Reviewer.Review.
type ReviewResult struct {
	NextReviewDate time.Time `json:"next_review_date"`
	Interval       int       `json:"interval"`
	UpdatedCard    Flashcard `json:"updated_card"`
	Log            ReviewLog `json:"-"`
}

// Reviewer applies reviews to cards of a deck.
type Reviewer struct {
	Scheduler ReviewScheduler
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to uuid.NewString.
	NewID func() string
}

// NewReviewer returns a Reviewer around s using the wall clock.
func NewReviewer(s ReviewScheduler) *Reviewer {
	return &Reviewer{Scheduler: s, Now: time.Now, NewID: uuid.NewString}
}

// Review validates req, reschedules the addressed card in place and returns
// the updated card. No other card of the deck is touched.
func (r *Reviewer) Review(deck *Deck, req ReviewRequest) (res ReviewResult, err error) {
	const op = "review"
	defer recoverInternal(op, &err)

	q, err := NewQuality(req.Quality)
	if err != nil {
		return ReviewResult{}, err
	}
	if req.ResponseTimeMs != nil && *req.ResponseTimeMs < 0 {
		return ReviewResult{}, NewError(KindValidation, op, ErrInvalidResponseTime,
			"responseTimeMs must not be negative, got %d", *req.ResponseTimeMs)
	}
	if deck == nil {
		return ReviewResult{}, NewError(KindValidation, op, ErrNilDeck, "no deck given")
	}
	card := deck.Card(req.CardID)
	if card == nil {
		return ReviewResult{}, NewError(KindNotFound, op, ErrCardNotFound,
			"card %q is not in deck %q", req.CardID, deck.ID)
	}

	now := r.now()
	card.Scheduling = r.scheduler().NextState(card.Scheduling, q, now)

	return ReviewResult{
		NextReviewDate: card.Scheduling.DueDate,
		Interval:       card.Scheduling.Interval,
		UpdatedCard:    *card,
		Log: ReviewLog{
			ID:              r.newID(),
			DeckID:          deck.ID,
			CardID:          card.ID,
			Quality:         q,
			ReviewedAt:      now,
			ResponseTimeMs:  req.ResponseTimeMs,
			Interval:        card.Scheduling.Interval,
			EaseFactor:      card.Scheduling.EaseFactor,
			RepetitionCount: card.Scheduling.RepetitionCount,
		},
	}, nil
}

func (r *Reviewer) scheduler() ReviewScheduler {
	if r.Scheduler == nil {
		return DefaultScheduler()
	}
	return r.Scheduler
}

func (r *Reviewer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Reviewer) newID() string {
	if r.NewID == nil {
		return uuid.NewString()
	}
	return r.NewID()
}
