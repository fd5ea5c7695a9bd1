package srs

import (
	"sort"
	"time"
)

// DueQueueResult is the set of cards due at a given instant.
type DueQueueResult struct {
	Queue          []Flashcard `json:"queue"`
	TotalDue       int         `json:"total_due"`
	NextReviewTime *time.Time  `json:"next_review_time,omitempty"`
}

// DueQueue returns the cards of deck that are due at now, earliest first,
// and the earliest due date among the cards that are not due yet.
// The deck is not modified; the queue holds copies.
func DueQueue(deck Deck, now time.Time) DueQueueResult {
	queue := make([]Flashcard, 0)
	var next *time.Time

	for _, card := range deck.Cards {
		due := card.Scheduling.DueDate
		if card.Scheduling.IsDue(now) {
			queue = append(queue, card)
			continue
		}
		if next == nil || due.Before(*next) {
			d := due
			next = &d
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		di, dj := queue[i].Scheduling.DueDate, queue[j].Scheduling.DueDate
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return queue[i].ID < queue[j].ID
	})

	return DueQueueResult{
		Queue:          queue,
		TotalDue:       len(queue),
		NextReviewTime: next,
	}
}

// Limit returns a copy of r whose queue holds at most n cards.
// TotalDue still counts every due card. n <= 0 means no limit.
func (r DueQueueResult) Limit(n int) DueQueueResult {
	if n <= 0 || n >= len(r.Queue) {
		return r
	}
	r.Queue = r.Queue[:n:n]
	return r
}

// Next returns the first card of the queue.
func (r DueQueueResult) Next() (Flashcard, bool) {
	if len(r.Queue) == 0 {
		return Flashcard{}, false
	}
	return r.Queue[0], true
}
