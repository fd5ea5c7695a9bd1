package srs

import (
	"math"
	"time"
)

// DeckStats are aggregate figures over every card of a deck.
type DeckStats struct {
	TotalCards        int     `json:"total_cards"`
	DueCards          int     `json:"due_cards"`
	ReviewedCards     int     `json:"reviewed_cards"`
	NewCards          int     `json:"new_cards"`
	AverageEaseFactor float64 `json:"average_ease_factor"`
	AverageInterval   float64 `json:"average_interval"`
}

// Summarize computes DeckStats at now. The ease factor average is rounded to
// two decimals and the interval average to one.
func Summarize(deck Deck, now time.Time) DeckStats {
	stats := DeckStats{TotalCards: len(deck.Cards)}
	if stats.TotalCards == 0 {
		return stats
	}

	var easeSum float64
	var intervalSum int
	for _, card := range deck.Cards {
		s := card.Scheduling
		if s.IsDue(now) {
			stats.DueCards++
		}
		if s.TotalReviews > 0 {
			stats.ReviewedCards++
		}
		easeSum += s.EaseFactor
		intervalSum += s.Interval
	}
	stats.NewCards = stats.TotalCards - stats.ReviewedCards

	n := float64(stats.TotalCards)
	stats.AverageEaseFactor = roundTo(easeSum/n, 2)
	stats.AverageInterval = roundTo(float64(intervalSum)/n, 1)
	return stats
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
